package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/possync/internal/client/cli"
	"github.com/dmitrijs2005/possync/internal/client/config"
	"github.com/dmitrijs2005/possync/internal/client/connectivity"
	"github.com/dmitrijs2005/possync/internal/client/localstore"
	"github.com/dmitrijs2005/possync/internal/client/remote"
	"github.com/dmitrijs2005/possync/internal/client/services"
	"github.com/dmitrijs2005/possync/internal/client/statusapi"
	"github.com/dmitrijs2005/possync/internal/client/syncer"
	"github.com/dmitrijs2005/possync/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, memory, err := localstore.OpenOrMemory(ctx, cfg.DatabasePath,
		localstore.WithLogger(logger), localstore.WithHistoryLimit(cfg.HistoryLimit))
	if err != nil {
		return err
	}
	defer store.Close()
	if memory {
		logger.Warn(ctx, "local database unavailable, data will not survive a restart", "path", cfg.DatabasePath)
	}

	client, err := remote.NewGRPCClient(cfg.ServerEndpointAddr, cfg.RemoteTimeout)
	if err != nil {
		return err
	}
	defer client.Close()

	auth := services.NewAuthService(client, store, logger)
	monitor := connectivity.NewMonitor(client, cfg.OnlineCheckInterval, false, logger)
	orch := syncer.NewOrchestrator(store, client, monitor, auth.OwnerID, logger)
	defer orch.Close()

	// A login warms the cache; coming back online first upgrades a local
	// session so the replay carries a token.
	auth.OnOwner(func(ownerID string) {
		if ownerID != "" {
			orch.TriggerSync()
		}
	})
	online := make(chan struct{}, 1)
	monitor.OnOnline(func() {
		select {
		case online <- struct{}{}:
		default:
		}
	})

	deps := services.Deps{Store: store, Remote: client, Owner: auth, Logger: logger, Now: time.Now}
	app := cli.NewApp(appOptions(cfg, deps, client, auth, orch, monitor.IsOnline))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return resumeOnOnline(gctx, online, auth, orch, logger) })
	g.Go(func() error {
		return syncer.NewScheduler(cfg.SyncInterval, orch, monitor, logger).Run(gctx)
	})
	if cfg.StatusAddr != "" {
		h := statusapi.NewHandler(orch, monitor, logger)
		g.Go(func() error { return statusapi.Serve(gctx, cfg.StatusAddr, h.Routes(), logger) })
	}

	replDone := make(chan struct{})
	go func() {
		defer close(replDone)
		_ = app.Run(gctx)
	}()

	select {
	case <-replDone:
	case <-gctx.Done():
	}
	stop()

	return g.Wait()
}
