package api

import (
	"net/http"

	"github.com/seenimoa/routerisk/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Engine  config.EngineConfig  `json:"engine"`
	Sources config.SourcesConfig `json:"sources"`
	API     config.APIConfig     `json:"api"`
	Logging config.LoggingConfig `json:"logging"`
}

// handleGetConfig returns the running configuration.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusNotFound, "no configuration loaded")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Engine:  s.cfg.Engine,
			Sources: s.cfg.Sources,
			API:     s.cfg.API,
			Logging: s.cfg.Logging,
		},
	})
}
