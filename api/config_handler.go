package api

import (
	"net/http"

	"github.com/seenimoa/coinsync/internal/config"
)

// ConfigResponse is the body of GET /config. Credentials appear only as
// masked key statuses.
type ConfigResponse struct {
	StoreBackend    string             `json:"store_backend"`
	CoinsTable      string             `json:"coins_table"`
	DataTable       string             `json:"data_table"`
	DataMaxRecords  int                `json:"data_max_records"`
	View            string             `json:"view"`
	SeenBackend     string             `json:"seen_backend"`
	RefreshInterval string             `json:"refresh_interval"`
	SyncInterval    string             `json:"sync_interval"`
	TopN            int                `json:"top_n"`
	SyncConcurrency int                `json:"sync_concurrency"`
	Keys            []config.KeyStatus `json:"keys"`
}

// handleGetConfig returns the running configuration without secrets.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "configuration not loaded")
		return
	}
	writeJSON(w, http.StatusOK, newConfigResponse(s.cfg))
}

func newConfigResponse(cfg *config.Config) ConfigResponse {
	return ConfigResponse{
		StoreBackend:    cfg.Store.Backend,
		CoinsTable:      cfg.Store.CoinsTable,
		DataTable:       cfg.Store.DataTable,
		DataMaxRecords:  cfg.Store.DataMaxRecords,
		View:            cfg.Store.View,
		SeenBackend:     cfg.Seen.Backend,
		RefreshInterval: cfg.Schedule.RefreshInterval.String(),
		SyncInterval:    cfg.Schedule.SyncInterval.String(),
		TopN:            cfg.Schedule.TopN,
		SyncConcurrency: cfg.Schedule.SyncConcurrency,
		Keys:            config.CheckAPIKeys(cfg),
	}
}
