// Package httpapi exposes token registration, renewal and the two relay
// paths over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/r2relay/internal/logging"
)

type HTTPServer struct {
	address         string
	shutdownTimeout time.Duration
	engine          *gin.Engine
	logger          logging.Logger
}

func NewHTTPServer(address string, shutdownTimeout time.Duration, l logging.Logger, ts TokenService, tr TransferService) *HTTPServer {
	logger := l.With("module", "http_server")
	return &HTTPServer{
		address:         address,
		shutdownTimeout: shutdownTimeout,
		engine:          newRouter(logger, ts, tr),
		logger:          logger,
	}
}

func newRouter(l logging.Logger, ts TokenService, tr TransferService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(l))

	h := &handler{tokens: ts, transfer: tr}

	r.GET("/health", h.health)

	api := r.Group("/R2api")
	api.POST("/register", h.register)
	api.POST("/renew", h.renew)

	authed := api.Group("", BearerAuth(ts))
	authed.POST("/upload", h.upload)
	authed.POST("/upload-direct", h.uploadDirect)

	return r
}

// Handler returns the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *HTTPServer) serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	stopped := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			done <- nil
			return
		}
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	err := srv.Serve(listen)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		close(stopped)
		<-done
		return err
	}
	return <-done
}
