package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
)

func TestServeHTTPRoutesPlainRequestsToHTTPHandler(t *testing.T) {
	called := false
	httpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	h := New(grpc.NewServer(), httpHandler)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/s/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if !called {
		t.Fatal("expected request to reach the http handler")
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestIsGRPCRequestDetectsContentTypeAndProtocol(t *testing.T) {
	cases := []struct {
		name        string
		protoMajor  int
		contentType string
		want        bool
	}{
		{"http2 grpc", 2, "application/grpc", true},
		{"http2 grpc+proto", 2, "application/grpc+proto", true},
		{"http1 grpc content type", 1, "application/grpc", false},
		{"http2 plain json", 2, "application/json", false},
		{"http2 no content type", 2, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &http.Request{ProtoMajor: tc.protoMajor, Header: http.Header{}}
			if tc.contentType != "" {
				r.Header.Set("Content-Type", tc.contentType)
			}
			if got := isGRPCRequest(r); got != tc.want {
				t.Fatalf("isGRPCRequest() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestServeHTTPRoutesGRPCRequestsAwayFromHTTPHandler(t *testing.T) {
	httpHandlerCalled := false
	httpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpHandlerCalled = true
	})
	h := New(grpc.NewServer(), httpHandler)

	r := httptest.NewRequest(http.MethodPost, "/shareterm.coordinator.HostRPC/Open", strings.NewReader(""))
	r.ProtoMajor = 2
	r.Header.Set("Content-Type", "application/grpc")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	if httpHandlerCalled {
		t.Fatal("expected gRPC request not to reach the http handler")
	}
}
