// Package api serves JSON views of the dashboard data for scripts and tooling
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"exoai/domain/prediction"
	"exoai/internal/analysis"
	"exoai/internal/errors"
	"exoai/internal/metricsview"
	"exoai/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SessionResolver extracts the browser session ID from a request
type SessionResolver func(r *http.Request) string

// Handler holds the dependencies of the JSON endpoints
type Handler struct {
	predictor ports.PredictorPort
	store     ports.SessionRepository
	sessionID SessionResolver
	started   time.Time
}

// NewHandler creates the API handler
func NewHandler(predictor ports.PredictorPort, store ports.SessionRepository, sessionID SessionResolver) *Handler {
	return &Handler{
		predictor: predictor,
		store:     store,
		sessionID: sessionID,
		started:   time.Now(),
	}
}

// Router returns the chi router with all API routes, relative to its mount point
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", h.handleHealth)
	r.Get("/analysis", h.handleAnalysis)
	r.Get("/metrics", h.handleMetrics)
	return r
}

// AnalysisResponse is the JSON projection of the analysis page
type AnalysisResponse struct {
	FileName    string                        `json:"fileName"`
	Summary     prediction.AnalysisSummary    `json:"summary"`
	Chart       []ChartShare                  `json:"chart"`
	Results     []prediction.PredictionResult `json:"results"`
	Filter      string                        `json:"filter"`
	Query       string                        `json:"query"`
	Page        int                           `json:"page"`
	TotalPages  int                           `json:"totalPages"`
	RowsPerPage int                           `json:"rowsPerPage"`
	Matched     int                           `json:"matched"`
	Total       int                           `json:"total"`
}

// ChartShare is one pie slice
type ChartShare struct {
	Class      string `json:"class"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// ModelResponse is one model of the metrics listing
type ModelResponse struct {
	prediction.ModelMetrics
	DisplayName  string                     `json:"display_name"`
	TopFeatures  []metricsview.FeatureScore `json:"top_features"`
	FeatureCount int                        `json:"feature_count"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	ctrl, err := analysis.Load(r.Context(), h.store, h.sessionID(r), nil)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	ctrl.Restore(analysis.ViewStateFromQuery(q.Get("filter"), q.Get("q"), q.Get("rows"), q.Get("page")))
	view := ctrl.View()

	shares := ctrl.Chart()
	chart := make([]ChartShare, len(shares))
	for i, s := range shares {
		chart[i] = ChartShare{Class: string(s.Class), Count: s.Count, Percentage: s.Percentage}
	}

	writeJSON(w, http.StatusOK, AnalysisResponse{
		FileName:    ctrl.FileName(),
		Summary:     ctrl.Data().Summary,
		Chart:       chart,
		Results:     view.Rows,
		Filter:      string(view.Filter),
		Query:       view.Query,
		Page:        view.Page,
		TotalPages:  view.TotalPages,
		RowsPerPage: view.RowsPerPage,
		Matched:     view.Matched,
		Total:       view.Total,
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctrl := metricsview.NewController(h.predictor)
	if err := ctrl.Load(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	models := make([]ModelResponse, 0, len(ctrl.Metrics()))
	for _, card := range ctrl.Cards(prediction.DefaultTopFeatures) {
		models = append(models, ModelResponse{
			ModelMetrics: card.Metrics,
			DisplayName:  card.Display.Name,
			TopFeatures:  card.TopFeatures,
			FeatureCount: card.FeatureCount,
		})
	}
	writeJSON(w, http.StatusOK, models)
}

// StatusFor maps an application error code onto an HTTP status
func StatusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeNoAnalysis:
		return http.StatusNotFound
	case errors.CodeValidationError:
		return http.StatusBadRequest
	case errors.CodeRequestError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] Internal error: %v", err)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": errors.Message(err),
		"code":  errors.GetCode(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}
