package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seenimoa/coinsync/internal/scheduler"
	"github.com/seenimoa/coinsync/internal/store"
	"github.com/seenimoa/coinsync/pkg/models"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string                `json:"status"`
	Version      string                `json:"version"`
	StoreBackend string                `json:"store_backend,omitempty"`
	CachedPrices int                   `json:"cached_prices"`
	WSClients    int                   `json:"ws_clients"`
	Jobs         []scheduler.JobStatus `json:"jobs"`
}

// priceFor returns the cached price keyed by the record's store identifier,
// falling back to the stored current_price. The cache is keyed by coin
// identifier, so this lookup normally misses; see DESIGN.md.
func (s *Server) priceFor(rec store.Record) float64 {
	if p, ok := s.cache.Get(rec.ID); ok {
		return p
	}
	p, _ := rec.Float(models.FieldCurrentPrice)
	return p
}

func (s *Server) handleCoins(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.FirstPage(r.Context(), s.coinsTable(), store.Query{
		MaxRecords: maxListedCoins,
		View:       s.view(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("list coins")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	out := make(map[string]models.PriceEntry, len(recs))
	for i, rec := range recs {
		if i == maxListedCoins {
			break
		}
		out[rec.String(models.FieldSymbol)] = models.PriceEntry{Price: s.priceFor(rec)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCoinPrice(w http.ResponseWriter, r *http.Request) {
	coinID := chi.URLParam(r, "coinId")

	recs, err := s.store.FirstPage(r.Context(), s.coinsTable(), store.Query{
		MaxRecords: 1,
		Filter:     store.FieldEquals(models.FieldSymbol, coinID),
	})
	if err != nil {
		s.log.Error().Err(err).Str("coin", coinID).Msg("lookup coin")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if len(recs) == 0 {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	writeJSON(w, http.StatusOK, models.CoinPrice{CoinID: coinID, Price: s.priceFor(recs[0])})
}

func (s *Server) handleTableData(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.All(r.Context(), s.dataTable(), store.Query{
		MaxRecords: s.dataMaxRecords(),
		View:       s.view(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("list table data")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       "ok",
		Version:      s.version,
		CachedPrices: s.cache.Len(),
		WSClients:    s.wsHub.ClientCount(),
		Jobs:         []scheduler.JobStatus{},
	}
	if s.cfg != nil {
		resp.StoreBackend = s.cfg.Store.Backend
	}
	if s.jobs != nil {
		resp.Jobs = s.jobs.Jobs()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) coinsTable() string {
	if s.cfg == nil || s.cfg.Store.CoinsTable == "" {
		return "Coins"
	}
	return s.cfg.Store.CoinsTable
}

func (s *Server) dataTable() string {
	if s.cfg == nil || s.cfg.Store.DataTable == "" {
		return s.coinsTable()
	}
	return s.cfg.Store.DataTable
}

// dataMaxRecords returns the /airtable-data cap; 0 means every record.
func (s *Server) dataMaxRecords() int {
	if s.cfg == nil {
		return maxListedCoins
	}
	return s.cfg.Store.DataMaxRecords
}

func (s *Server) view() string {
	if s.cfg == nil {
		return ""
	}
	return s.cfg.Store.View
}
