// Package server wires the Postgres repositories, services and the gRPC
// endpoint of the possync server.
package server

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/possync/internal/logging"
	"github.com/dmitrijs2005/possync/internal/server/config"
	gs "github.com/dmitrijs2005/possync/internal/server/grpc"
	"github.com/dmitrijs2005/possync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/possync/internal/server/services"
)

var openDB = repomanager.OpenPostgres

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
}

func NewApp(c *config.Config, l logging.Logger) *App {
	return &App{
		config:      c,
		logger:      l,
		repomanager: repomanager.NewPostgresRepositoryManager(),
	}
}

// Run opens the database, migrates it and serves gRPC until ctx is done.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")

	db, err := openDB(ctx, app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	if err := app.repomanager.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.grpcServer(db).Run(ctx)
	})

	err = g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

func (app *App) grpcServer(db *sql.DB) *gs.GRPCServer {
	us := services.NewUserService(db, app.repomanager, app.config)
	rs := services.NewRecordService(db, app.repomanager)
	is := services.NewImageService(db, app.repomanager, app.config)
	return gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, us, rs, is)
}
