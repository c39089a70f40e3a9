package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"ratecast/app"
	"ratecast/domain/core"
	"ratecast/domain/drift"
	"ratecast/domain/validation"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// driftStatus is the /api/drift payload: the latest report plus the
// trend derived from the full recorded history.
type driftStatus struct {
	Horizon     core.Horizon      `json:"horizon"`
	Evaluations int               `json:"evaluations"`
	Latest      *drift.Report     `json:"latest"`
	Trend       drift.TrendReport `json:"trend"`
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	horizon, err := core.ParseHorizon(chi.URLParam(r, "horizon"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	history, err := s.drift.History(r.Context(), horizon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trendReport, err := s.drift.Trend(r.Context(), horizon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := driftStatus{
		Horizon:     horizon,
		Evaluations: len(history),
		Trend:       trendReport,
	}
	if len(history) > 0 {
		status.Latest = &history[len(history)-1]
	}
	s.writeJSON(w, http.StatusOK, status)
}

// validationStatus is the /api/validation payload.
type validationStatus struct {
	Horizon core.Horizon       `json:"horizon"`
	Runs    int                `json:"runs"`
	Latest  *validation.Report `json:"latest"`
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	horizon, err := core.ParseHorizon(chi.URLParam(r, "horizon"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	history, err := s.validation.History(r.Context(), horizon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(history) == 0 {
		s.writeError(w, r, core.ErrReportNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, validationStatus{
		Horizon: horizon,
		Runs:    len(history),
		Latest:  &history[len(history)-1],
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	horizon, err := core.ParseHorizon(chi.URLParam(r, "horizon"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	driftHistory, err := s.drift.History(r.Context(), horizon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trendReport, err := s.drift.Trend(r.Context(), horizon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	valHistory, err := s.validation.History(r.Context(), horizon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	md := app.StatusMarkdown(horizon, driftHistory, trendReport, valHistory)

	// The parser holds per-parse state, so each request gets a fresh one.
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Title: "Forecast monitor: " + horizon.String(),
		Flags: mdhtml.CommonFlags | mdhtml.CompletePage,
	})
	page := markdown.Render(p.Parse([]byte(md)), renderer)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		s.log.Warn().Err(err).Msg("report response write failed")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("response encode failed")
	}
}

// writeError maps domain errors onto HTTP statuses. Unknown errors stay
// opaque 500s; their detail goes to the log, not the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case core.IsConfigError(err):
		status = http.StatusBadRequest
		message = err.Error()
	case core.IsNotFound(err):
		status = http.StatusNotFound
		message = err.Error()
	case core.IsInsufficientData(err):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	case core.IsLockTimeout(err):
		status = http.StatusServiceUnavailable
		message = err.Error()
	}

	s.log.Warn().
		Str("path", r.URL.Path).
		Int("status", status).
		Err(err).
		Msg("request failed")
	s.writeJSON(w, status, map[string]string{"error": message})
}
