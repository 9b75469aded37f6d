// Package app wires the coinsync components together from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seenimoa/coinsync/api"
	"github.com/seenimoa/coinsync/internal/catalog"
	"github.com/seenimoa/coinsync/internal/coingecko"
	"github.com/seenimoa/coinsync/internal/config"
	"github.com/seenimoa/coinsync/internal/pricecache"
	"github.com/seenimoa/coinsync/internal/refresher"
	"github.com/seenimoa/coinsync/internal/scheduler"
	"github.com/seenimoa/coinsync/internal/seen"
	"github.com/seenimoa/coinsync/internal/store"
	"github.com/seenimoa/coinsync/internal/store/airtable"
	"github.com/seenimoa/coinsync/internal/store/memory"
	"github.com/seenimoa/coinsync/internal/store/postgres"
)

// Job names as reported by /health.
const (
	JobRefreshPrices = "refresh-prices"
	JobSyncCatalog   = "sync-catalog"
)

// App holds every long-lived component of the service.
type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	Store     store.Store
	Seen      seen.Set
	Cache     *pricecache.Cache
	Prices    *coingecko.Client
	Refresher *refresher.Refresher
	Catalog   *catalog.Synchronizer
	Scheduler *scheduler.Scheduler
	Server    *api.Server

	closers []func() error
}

// New builds the application. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, version string) (*App, error) {
	a := &App{
		Config: cfg,
		Log:    log,
		Cache:  pricecache.New(),
	}

	st, err := a.newStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = st
	log.Info().Str("backend", cfg.Store.Backend).Msg("store ready")

	set, err := a.newSeen(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Seen = set
	log.Info().Str("backend", cfg.Seen.Backend).Msg("seen set ready")

	a.Prices = coingecko.New(coingecko.Options{
		BaseURL:   cfg.CoinGecko.BaseURL,
		APIKey:    cfg.CoinGecko.APIKey,
		Pro:       cfg.CoinGecko.Pro,
		Timeout:   cfg.CoinGecko.Timeout,
		RateLimit: cfg.CoinGecko.RateLimit,
	})

	a.Scheduler = scheduler.New(cfg.Schedule.JobTimeout, log)
	a.Server = api.NewServer(api.Deps{
		Config:  cfg,
		Store:   a.Store,
		Cache:   a.Cache,
		Jobs:    a.Scheduler,
		Log:     log,
		Version: version,
	})

	hub := a.Server.Hub()
	a.Refresher = refresher.New(a.Prices, a.Cache, a.Seen, hub, log)
	a.Catalog = catalog.New(a.Prices, a.Store, a.Cache, a.Seen, catalog.Options{
		Table:       cfg.Store.CoinsTable,
		TopN:        cfg.Schedule.TopN,
		Concurrency: cfg.Schedule.SyncConcurrency,
		Publisher:   hub,
	}, log)

	if err := a.registerJobs(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) newStore(ctx context.Context) (store.Store, error) {
	cfg := a.Config.Store
	switch strings.ToLower(cfg.Backend) {
	case "airtable":
		c, err := airtable.New(airtable.Options{
			BaseURL: cfg.Airtable.BaseURL,
			Token:   cfg.Airtable.Token,
			BaseID:  cfg.Airtable.BaseID,
		})
		if err != nil {
			return nil, fmt.Errorf("airtable store: %w", err)
		}
		return c, nil

	case "postgres":
		pg, err := postgres.Open(ctx, postgres.Options{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pg, nil

	case "memory":
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func (a *App) newSeen(ctx context.Context) (seen.Set, error) {
	cfg := a.Config.Seen
	switch strings.ToLower(cfg.Backend) {
	case "redis":
		r := seen.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key)
		a.closers = append(a.closers, r.Close)
		if err := r.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis seen set: %w", err)
		}
		return r, nil

	case "memory", "":
		return seen.NewMemory(), nil

	default:
		return nil, fmt.Errorf("unknown seen backend %q", cfg.Backend)
	}
}

func (a *App) registerJobs() error {
	sc := a.Config.Schedule

	refresh := &scheduler.Job{
		Name:        JobRefreshPrices,
		Description: "refresh cached prices of tracked coins",
		Schedule:    scheduler.Every(sc.RefreshInterval),
		Handler: func(ctx context.Context) error {
			a.Log.Debug().Msg("update the price")
			_, err := a.Refresher.Refresh(ctx)
			return err
		},
	}
	sync := &scheduler.Job{
		Name:        JobSyncCatalog,
		Description: "record newly seen top coins in the store",
		Schedule:    scheduler.Every(sc.SyncInterval),
		Handler: func(ctx context.Context) error {
			a.Log.Debug().Int("top_n", sc.TopN).Msg("fetch top coins")
			_, err := a.Catalog.Sync(ctx)
			return err
		},
	}

	for _, job := range []*scheduler.Job{refresh, sync} {
		if err := a.Scheduler.Register(job); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the background jobs and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.Scheduler.Start(ctx)
	defer a.Scheduler.Stop()

	return a.Server.ListenAndServe(ctx, a.Config.Server.Addr())
}

// Close releases store and seen-set connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
