// Package transport implements §4.13: a single listener serves both the
// gRPC host RPC (HTTP/2, content-type application/grpc) and the viewer
// HTTP/WebSocket traffic on the same address. Dispatch is by
// content-type, not by path, so it must run ahead of any router and
// must never buffer the request body — a buffered gRPC stream would
// break the host's long-lived bidirectional Channel call.
package transport

import (
	"net/http"
	"strings"

	"google.golang.org/grpc"
)

// Handler multiplexes between a gRPC server and a plain HTTP handler
// based on the incoming request's protocol and content type.
type Handler struct {
	grpcServer  *grpc.Server
	httpHandler http.Handler
}

// New returns a Handler that routes HTTP/2 application/grpc(+proto)
// requests to grpcServer and everything else to httpHandler.
func New(grpcServer *grpc.Server, httpHandler http.Handler) *Handler {
	return &Handler{grpcServer: grpcServer, httpHandler: httpHandler}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isGRPCRequest(r) {
		h.grpcServer.ServeHTTP(w, r)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

func isGRPCRequest(r *http.Request) bool {
	if r.ProtoMajor != 2 {
		return false
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc")
}
