// Package catalog records newly seen top-market-cap coins in the durable store.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/coinsync/internal/pricecache"
	"github.com/seenimoa/coinsync/internal/seen"
	"github.com/seenimoa/coinsync/internal/store"
	"github.com/seenimoa/coinsync/pkg/models"
)

// EventCatalogSynced is published after every sync that fetched the listing.
const EventCatalogSynced = "catalog_synced"

const (
	DefaultTopN        = 20
	DefaultConcurrency = 5
)

// MarketSource lists coins ordered by market capitalization.
type MarketSource interface {
	TopByMarketCap(ctx context.Context, perPage, page int) ([]models.MarketCoin, error)
}

// Publisher receives sync events.
type Publisher interface {
	Publish(event string, data any)
}

// Options configures a Synchronizer.
type Options struct {
	Table       string
	TopN        int
	Concurrency int
	Publisher   Publisher
}

// Synchronizer creates a store record for each top coin not yet seen.
type Synchronizer struct {
	markets     MarketSource
	store       store.Store
	cache       *pricecache.Cache
	seen        seen.Set
	table       string
	topN        int
	concurrency int
	publisher   Publisher
	log         zerolog.Logger
}

// Report is the outcome of one Sync.
type Report struct {
	RunID     string            `json:"run_id"`
	Fetched   int               `json:"fetched"`
	Skipped   []string          `json:"skipped"`
	Created   map[string]string `json:"created"` // coin id -> record id
	Failed    map[string]string `json:"failed"`  // coin id -> error
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
}

// New creates a Synchronizer.
func New(markets MarketSource, st store.Store, cache *pricecache.Cache, set seen.Set, opts Options, log zerolog.Logger) *Synchronizer {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Synchronizer{
		markets:     markets,
		store:       st,
		cache:       cache,
		seen:        set,
		table:       opts.Table,
		topN:        opts.TopN,
		concurrency: opts.Concurrency,
		publisher:   opts.Publisher,
		log:         log.With().Str("component", "catalog").Logger(),
	}
}

// Sync runs one cycle. It fails only if the listing cannot be fetched;
// per-coin failures are reported in the Report and never affect other coins.
// A coin listed more than once is handled once.
func (s *Synchronizer) Sync(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		Skipped:   []string{},
		Created:   map[string]string{},
		Failed:    map[string]string{},
		StartedAt: time.Now(),
	}
	log := s.log.With().Str("run_id", report.RunID).Logger()

	coins, err := s.markets.TopByMarketCap(ctx, s.topN, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch top %d coins: %w", s.topN, err)
	}
	report.Fetched = len(coins)

	var (
		mu        sync.Mutex
		g         errgroup.Group
		scheduled = make(map[string]struct{}, len(coins))
	)
	g.SetLimit(s.concurrency)

	for _, coin := range coins {
		if _, dup := scheduled[coin.ID]; dup {
			continue
		}
		scheduled[coin.ID] = struct{}{}

		known, err := s.seen.Has(ctx, coin.ID)
		if err != nil {
			log.Warn().Err(err).Str("coin", coin.ID).Msg("seen lookup failed")
			mu.Lock()
			report.Failed[coin.ID] = err.Error()
			mu.Unlock()
			continue
		}
		if known {
			report.Skipped = append(report.Skipped, coin.ID)
			continue
		}

		g.Go(func() error {
			recordID, err := s.create(ctx, coin, log)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[coin.ID] = err.Error()
				log.Error().Err(err).Str("coin", coin.ID).Msg("failed to create coin record")
				return nil
			}
			report.Created[coin.ID] = recordID
			log.Info().Str("coin", coin.ID).Str("record", recordID).Msg("coin recorded")
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Skipped)
	report.Duration = time.Since(report.StartedAt)

	log.Info().
		Int("fetched", report.Fetched).
		Int("created", len(report.Created)).
		Int("skipped", len(report.Skipped)).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("catalog synced")

	if s.publisher != nil {
		s.publisher.Publish(EventCatalogSynced, report)
	}
	return report, nil
}

// create writes one coin record, seeding current_price from the cache when
// available, and marks the coin seen once the record exists.
func (s *Synchronizer) create(ctx context.Context, coin models.MarketCoin, log zerolog.Logger) (string, error) {
	price := coin.CurrentPrice
	if cached, ok := s.cache.Get(coin.ID); ok {
		price = cached
	}

	recs, err := s.store.Create(ctx, s.table, []map[string]any{models.CoinFields(coin, price)})
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", fmt.Errorf("store returned no record for %s", coin.ID)
	}

	if err := s.seen.Add(ctx, coin.ID); err != nil {
		// The record exists; the coin will be created again next cycle.
		log.Warn().Err(err).Str("coin", coin.ID).Msg("failed to mark coin seen")
	}
	return recs[0].ID, nil
}
