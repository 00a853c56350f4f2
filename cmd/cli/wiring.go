package main

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/possync/internal/client/cli"
	"github.com/dmitrijs2005/possync/internal/client/config"
	"github.com/dmitrijs2005/possync/internal/client/remote"
	"github.com/dmitrijs2005/possync/internal/client/services"
	"github.com/dmitrijs2005/possync/internal/logging"
)

func appOptions(cfg *config.Config, deps services.Deps, images remote.Images, auth *services.AuthService, s cli.Syncer, online func() bool) cli.Options {
	items := services.NewSaleItems(deps)
	return cli.Options{
		Auth:         auth,
		Products:     services.NewProducts(deps, images, &http.Client{Timeout: 30 * time.Second}),
		Customers:    services.NewCustomers(deps),
		Sales:        services.NewSales(deps, items),
		Syncer:       s,
		Online:       online,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       deps.Logger,
	}
}

type resumer interface {
	Resume(ctx context.Context) error
}

type trigger interface {
	TriggerSync() bool
}

// resumeOnOnline upgrades a local session and starts a sync pass each time
// online fires. It returns when ctx is done, after any resume in progress.
func resumeOnOnline(ctx context.Context, online <-chan struct{}, auth resumer, t trigger, logger logging.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-online:
			if err := auth.Resume(ctx); err != nil {
				logger.Warn(ctx, "could not resume session online", "error", err)
			}
			t.TriggerSync()
		}
	}
}
