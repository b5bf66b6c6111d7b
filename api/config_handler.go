package api

import (
	"net/http"

	"github.com/seenimoa/secpack/internal/config"
	"github.com/seenimoa/secpack/internal/edgar"
	"github.com/seenimoa/secpack/internal/pack"
)

// PackDefaultsView is a pack parameter set as it appears on the query string.
type PackDefaultsView struct {
	DaysBack    int    `json:"daysBack"`
	MaxExhibits int    `json:"maxEx"`
	MaxMB       int    `json:"maxMb"`
	Exhibits    bool   `json:"exhibits"`
	Deep        bool   `json:"deep"`
	Mode        string `json:"mode"`
}

// ParamRange is the accepted interval of an integer parameter.
type ParamRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
// The user agent carries a contact address and is only reported masked.
type ConfigResponse struct {
	Defaults          PackDefaultsView       `json:"defaults"`
	Limits            map[string]ParamRange  `json:"limits"`
	Modes             []string               `json:"modes"`
	RequestsPerSecond float64                `json:"requests_per_second"`
	Settings          []config.SettingStatus `json:"settings"`
}

func paramsView(r pack.Request) PackDefaultsView {
	return PackDefaultsView{
		DaysBack:    r.DaysBack,
		MaxExhibits: r.MaxExhibits,
		MaxMB:       r.MaxMB,
		Exhibits:    r.Exhibits,
		Deep:        r.Deep,
		Mode:        r.Mode,
	}
}

// handleGetConfig returns the defaults and limits a pack request starts from.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Defaults: paramsView(pack.DefaultRequest("", s.cfg.Pack)),
			Limits: map[string]ParamRange{
				"daysBack": {Min: pack.MinDaysBack, Max: pack.MaxDaysBack},
				"maxEx":    {Min: pack.MinExhibits, Max: pack.MaxExhibits},
				"maxMb":    {Min: pack.MinMB, Max: pack.MaxMB},
			},
			Modes:             []string{edgar.ModeRecent, edgar.ModeFull, edgar.ModeFeed},
			RequestsPerSecond: s.cfg.SEC.RequestsPerSecond,
			Settings:          config.CheckSettings(s.cfg),
		},
	})
}

// handleGetConfigKeys returns the status of every required setting.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckSettings(s.cfg),
	})
}
