package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"

	"github.com/shareterm/coordinatord/internal/coordinator"
	"github.com/shareterm/coordinatord/internal/hostrpc"
	"github.com/shareterm/coordinatord/internal/logger"
	"github.com/shareterm/coordinatord/internal/mesh"
	"github.com/shareterm/coordinatord/internal/proxy"
	"github.com/shareterm/coordinatord/internal/sessionstore"
	"github.com/shareterm/coordinatord/internal/token"
	"github.com/shareterm/coordinatord/internal/transport"
	"github.com/shareterm/coordinatord/internal/viewerws"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var addr, secret, overrideOrigin, hostName, redisURL, logLevel, logFile string

	root := &cobra.Command{
		Use:   "coordinatord",
		Short: "shareterm session coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logLevel, logFile); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			log := logger.Log

			if hostName == "" {
				h, err := os.Hostname()
				if err != nil {
					return fmt.Errorf("determine host name: %w", err)
				}
				hostName = h
			}

			store := sessionstore.New()
			defer store.Shutdown()

			tokens := token.New(secret)

			var m *mesh.Mesh
			if redisURL != "" {
				opts, err := redis.ParseURL(redisURL)
				if err != nil {
					return fmt.Errorf("parse redis url: %w", err)
				}
				m = mesh.New(mesh.NewRedisKV(redis.NewClient(opts)), hostName, log)
				log.Info("mesh enabled", "host", hostName, "redis", redisURL)
			} else {
				log.Info("mesh disabled: running as a standalone node")
			}

			coord := coordinator.New(coordinator.Config{
				Secret:         secret,
				OverrideOrigin: overrideOrigin,
				HostName:       hostName,
			}, store, m, tokens, log)

			grpcServer := grpc.NewServer()
			hostrpc.RegisterService(grpcServer, hostrpc.NewHandler(coord, tokens, log))

			mux := http.NewServeMux()
			mux.Handle("/api/s/{name}", viewerws.NewHandler(coord, proxy.New(), log))

			muxed := transport.New(grpcServer, mux)
			h2s := &http2.Server{}
			httpSrv := &http.Server{
				Addr:    addr,
				Handler: h2c.NewHandler(muxed, h2s),
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if m != nil {
				go coord.RunTransferListener(ctx)
			}
			go coord.RunEvictionLoop(ctx)

			errCh := make(chan error, 1)
			go func() {
				log.Info("coordinatord listening", "addr", addr, "host", hostName)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				log.Info("shutting down")
				return httpSrv.Close()
			case err := <-errCh:
				return err
			}
		},
	}

	root.Flags().StringVar(&addr, "addr", envOr("COORDINATORD_ADDR", ":8080"), "listen address")
	root.Flags().StringVar(&secret, "secret", os.Getenv("COORDINATORD_SECRET"), "token signing secret (generated if empty)")
	root.Flags().StringVar(&overrideOrigin, "override-origin", os.Getenv("COORDINATORD_ORIGIN"), "public base URL returned from open (defaults to https://<host>)")
	root.Flags().StringVar(&hostName, "host-name", os.Getenv("COORDINATORD_HOST_NAME"), "this node's mesh identity (defaults to the OS host name)")
	root.Flags().StringVar(&redisURL, "redis-url", os.Getenv("COORDINATORD_REDIS_URL"), "redis URL for the cross-node mesh (standalone if empty)")
	root.Flags().StringVar(&logLevel, "log-level", envOr("COORDINATORD_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	root.Flags().StringVar(&logFile, "log-file", os.Getenv("COORDINATORD_LOG_FILE"), "additional log file path (stdout is always written)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
