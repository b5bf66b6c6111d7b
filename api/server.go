// Package api provides the HTTP server for secpack.
//
// It exposes the pack download endpoint, a selection preview, a WebSocket
// progress feed, Prometheus metrics and the embedded request form.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/seenimoa/secpack/internal/config"
	"github.com/seenimoa/secpack/internal/edgar"
	"github.com/seenimoa/secpack/internal/pack"
	"github.com/seenimoa/secpack/internal/selector"
	"github.com/seenimoa/secpack/internal/telemetry"
	"github.com/seenimoa/secpack/pkg/utils"
	"github.com/seenimoa/secpack/web"
)

// Version is reported by the health endpoint; set at build time.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	builder *pack.Builder
	hub     *WSHub
	log     *zap.Logger
	serveUI bool // when true, serve the embedded request form at /
}

// NewServer creates a configured API server reading filings from src.
func NewServer(cfg *config.Config, src pack.Source, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	hub := NewWSHub(log)
	srv := &Server{
		cfg:     cfg,
		hub:     hub,
		builder: pack.NewBuilder(src, log, pack.WithNotifier(hub)),
		log:     log.Named("api"),
		serveUI: true,
	}
	srv.router = srv.buildRouter()
	return srv
}

// SetServeUI controls whether the embedded form is served.
// Must be called before ListenAndServe.
func (s *Server) SetServeUI(enabled bool) {
	s.serveUI = enabled
	s.router = s.buildRouter()
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the progress hub.
func (s *Server) Hub() *WSHub {
	return s.hub
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: pack downloads stream for as long as EDGAR takes.
	}

	go s.hub.Run()
	defer s.hub.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Build-ID", "Content-Disposition"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", telemetry.MetricsHandler())

	// Legacy download path.
	r.Get("/api/pack", s.handlePack)

	r.Route("/api/v1", func(r chi.Router) {
		// Streaming routes carry no timeout; a pack takes as long as EDGAR does.
		r.Get("/pack", s.handlePack)
		r.Get("/ws/progress", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/health", s.handleHealth)
			r.Get("/selection", s.handleSelection)
			r.Get("/config", s.handleGetConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)
		})
	})

	if s.serveUI {
		s.mountUI(r)
	}
	return r
}

// mountUI serves the embedded form for everything outside /api.
func (s *Server) mountUI(r chi.Router) {
	files := http.FileServerFS(web.DistFS())
	r.Get("/*", files.ServeHTTP)
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// ════════════════════════════════════════════════════════════════════
// Handlers
// ════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":     "ok",
			"version":    Version,
			"time":       time.Now().UTC().Format(time.RFC3339),
			"configured": s.cfg.Validate() == nil,
			"ws_clients": s.hub.ClientCount(),
		},
	})
}

// handlePack builds a pack and streams it as a ZIP download. Failures
// before the first byte map to a JSON error; once streaming starts only
// the log records a failure.
func (s *Server) handlePack(w http.ResponseWriter, r *http.Request) {
	req, err := s.parsePackRequest(r)
	if err != nil {
		s.writeBuildError(w, err)
		return
	}

	p, err := s.builder.Prepare(r.Context(), req)
	if err != nil {
		s.writeBuildError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, p.FileName()))
	w.Header().Set("X-Build-ID", p.ID)
	w.WriteHeader(http.StatusOK)

	if _, err := p.Stream(r.Context(), w); err != nil {
		s.log.Warn("pack stream aborted",
			zap.String("id", p.ID),
			zap.String("ticker", p.Company.Ticker),
			zap.Error(err),
		)
	}
}

// SelectionResponse previews which filings a pack would contain.
type SelectionResponse struct {
	BuildID  string           `json:"build_id"`
	Company  CompanyView      `json:"company"`
	AsOf     string           `json:"as_of"`
	Listing  string           `json:"listing"`
	FileName string           `json:"file_name"`
	Listed   int              `json:"listed"`
	Selected []FilingView     `json:"selected"`
	Audit    []FilingView     `json:"audit,omitempty"`
	Rules    []string         `json:"rules"`
	Params   PackDefaultsView `json:"params"`
}

// CompanyView is a resolved ticker.
type CompanyView struct {
	Ticker string `json:"ticker"`
	CIK    string `json:"cik"`
	Name   string `json:"name"`
}

// FilingView is one filing in a selection preview.
type FilingView struct {
	Form      string `json:"form"`
	Date      string `json:"filing_date"`
	Accession string `json:"accession"`
	Document  string `json:"primary_document,omitempty"`
	Selected  bool   `json:"selected"`
	Reason    string `json:"reason"`
}

// handleSelection runs resolution and selection without downloading any
// document. ?audit=true includes every listed filing with its reason.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	req, err := s.parsePackRequest(r)
	if err != nil {
		s.writeBuildError(w, err)
		return
	}
	withAudit, err := boolParam(r, "audit", false)
	if err != nil {
		s.writeBuildError(w, err)
		return
	}

	p, err := s.builder.Prepare(r.Context(), req)
	if err != nil {
		s.writeBuildError(w, err)
		return
	}

	resp := SelectionResponse{
		BuildID:  p.ID,
		Company:  CompanyView{Ticker: p.Company.Ticker, CIK: p.Company.CIK, Name: p.Company.Name},
		AsOf:     p.AsOfString(),
		Listing:  p.Listing,
		FileName: p.FileName(),
		Listed:   len(p.Filings),
		Params:   paramsView(req),
	}
	for _, rule := range selector.Rules() {
		resp.Rules = append(resp.Rules, rule.Name)
	}
	for _, sf := range p.Selected {
		resp.Selected = append(resp.Selected, FilingView{
			Form: sf.Form, Date: sf.DateString(), Accession: sf.AccessionNo,
			Document: sf.PrimaryDocument, Selected: true, Reason: sf.Reason,
		})
	}
	if withAudit {
		for _, c := range p.Audit {
			resp.Audit = append(resp.Audit, FilingView{
				Form: c.Form, Date: c.DateString(), Accession: c.AccessionNo,
				Document: c.PrimaryDocument, Selected: c.Selected, Reason: c.Reason,
			})
		}
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// ════════════════════════════════════════════════════════════════════
// Request parsing
// ════════════════════════════════════════════════════════════════════

// parsePackRequest reads the query string over the configured defaults.
// Unparseable values are rejected; range checks happen in Prepare.
func (s *Server) parsePackRequest(r *http.Request) (pack.Request, error) {
	q := r.URL.Query()
	req := pack.DefaultRequest(strings.TrimSpace(q.Get("ticker")), s.cfg.Pack)

	var err error
	if req.DaysBack, err = intParam(r, "daysBack", req.DaysBack); err != nil {
		return req, err
	}
	if req.MaxExhibits, err = intParam(r, "maxEx", req.MaxExhibits); err != nil {
		return req, err
	}
	if req.MaxMB, err = intParam(r, "maxMb", req.MaxMB); err != nil {
		return req, err
	}
	if req.Exhibits, err = boolParam(r, "exhibits", req.Exhibits); err != nil {
		return req, err
	}
	if req.Deep, err = boolParam(r, "deep", req.Deep); err != nil {
		return req, err
	}

	full, err := boolParam(r, "all", req.Mode == edgar.ModeFull)
	if err != nil {
		return req, err
	}
	req.Mode = edgar.ModeRecent
	if full {
		req.Mode = edgar.ModeFull
	}
	if m := strings.TrimSpace(q.Get("mode")); m != "" {
		req.Mode = strings.ToLower(m)
	}

	if v := strings.TrimSpace(q.Get("asOf")); v != "" {
		t, err := utils.ParseDate(v)
		if err != nil {
			return req, &pack.InvalidRequestError{Field: "asOf", Detail: fmt.Sprintf("%q is not a YYYY-MM-DD date", v)}
		}
		req.AsOf = t
	}
	return req, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &pack.InvalidRequestError{Field: name, Detail: fmt.Sprintf("%q is not an integer", v)}
	}
	return n, nil
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &pack.InvalidRequestError{Field: name, Detail: fmt.Sprintf("%q is not a boolean", v)}
	}
	return b, nil
}

// statusFor maps a build error to an HTTP status.
func statusFor(err error) int {
	switch pack.Outcome(err) {
	case "bad_request":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "canceled":
		return 499 // client closed request
	}
	return http.StatusInternalServerError
}

func (s *Server) writeBuildError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("pack build failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.log.Info("pack request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

// ════════════════════════════════════════════════════════════════════
// Response helpers
// ════════════════════════════════════════════════════════════════════

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
