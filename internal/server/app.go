// Package server wires configuration, the record store client, the token
// manager, the transfer pipeline and the HTTP API together, and runs them
// until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/r2relay/internal/filex"
	"github.com/dmitrijs2005/r2relay/internal/logging"
	"github.com/dmitrijs2005/r2relay/internal/server/config"
	"github.com/dmitrijs2005/r2relay/internal/server/httpapi"
	"github.com/dmitrijs2005/r2relay/internal/server/recordstore"
	"github.com/dmitrijs2005/r2relay/internal/server/tokens"
	"github.com/dmitrijs2005/r2relay/internal/server/transfer"
)

type App struct {
	config          *config.Config
	logger          logging.Logger
	tokenService    *tokens.Service
	transferService *transfer.Service
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, err
	}

	dir, err := filex.EnsureDir(c.TempDir)
	if err != nil {
		return nil, fmt.Errorf("spill dir init error: %w", err)
	}
	c.TempDir = dir

	records := recordstore.NewClient(c, nil, logger)
	ts := tokens.NewService(tokens.NewRemoteRepository(records, c.Fields), logger)
	tr := transfer.NewService(c, transfer.NewS3Store(c.S3Region, logger), &http.Client{}, logger)

	return &App{config: c, logger: logger, tokenService: ts, transferService: tr}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"max_file_size", app.config.MaxFileSize,
		"spill_dir", app.config.TempDir,
		"record_store", app.config.RecordStoreURL,
		"fields", app.config.Fields.String())

	app.initSignalHandler(cancelFunc)

	gin.SetMode(gin.ReleaseMode)
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.config.ShutdownTimeout, app.logger, app.tokenService, app.transferService)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Run(gctx)
	})

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}
