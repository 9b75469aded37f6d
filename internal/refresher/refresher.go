// Package refresher keeps the price cache current for every tracked coin.
package refresher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seenimoa/coinsync/internal/pricecache"
	"github.com/seenimoa/coinsync/internal/seen"
)

// EventPricesUpdated is published after a successful refresh.
const EventPricesUpdated = "prices_updated"

// PriceSource returns USD prices for a batch of coin identifiers.
type PriceSource interface {
	SimplePrice(ctx context.Context, ids []string) (map[string]float64, error)
}

// Publisher receives refresh events. The WebSocket hub implements it.
type Publisher interface {
	Publish(event string, data any)
}

// Refresher fetches current prices for the tracked set in one batched call.
type Refresher struct {
	source    PriceSource
	cache     *pricecache.Cache
	tracked   seen.Set
	publisher Publisher
	log       zerolog.Logger
}

// New creates a Refresher. publisher may be nil.
func New(source PriceSource, cache *pricecache.Cache, tracked seen.Set, publisher Publisher, log zerolog.Logger) *Refresher {
	return &Refresher{
		source:    source,
		cache:     cache,
		tracked:   tracked,
		publisher: publisher,
		log:       log.With().Str("component", "refresher").Logger(),
	}
}

// Refresh performs one cycle and returns how many prices were written.
// On any failure the cache is left exactly as it was.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	ids, err := r.tracked.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tracked coins: %w", err)
	}
	if len(ids) == 0 {
		r.log.Debug().Msg("no tracked coins, skipping refresh")
		return 0, nil
	}

	prices, err := r.source.SimplePrice(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("refresh %d coins: %w", len(ids), err)
	}

	n := r.cache.Merge(prices)
	r.log.Info().Int("tracked", len(ids)).Int("updated", n).Msg("prices refreshed")

	if r.publisher != nil && n > 0 {
		r.publisher.Publish(EventPricesUpdated, prices)
	}
	return n, nil
}
