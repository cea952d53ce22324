// Package httpapi exposes the booking pipeline over HTTP.
//
// All pipeline routes are organization-scoped: the owning organization
// is resolved from the request hostname before any record is loaded,
// and records belonging to other organizations are indistinguishable
// from missing ones.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/gigguin/bookflow/internal/tenant"
	"github.com/gigguin/bookflow/pkg/api"
)

// Server holds the handler dependencies.
type Server struct {
	engine   api.Engine
	resolver *tenant.Resolver
	logger   zerolog.Logger

	// metrics, if non-nil, is mounted at /metrics outside the tenant
	// middleware.
	metrics http.Handler
}

// New creates a Server.
func New(engine api.Engine, resolver *tenant.Resolver, logger zerolog.Logger, metrics http.Handler) *Server {
	return &Server{
		engine:   engine,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// Router builds the chi router with the canonical middleware stack:
// recoverer, request ID, request logging, then tenant resolution for
// the API routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(recoverer(s.logger))
	r.Use(requestID)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(resolveTenant(s.resolver))

		r.Route("/pipelines", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Get("/", s.handleList)
			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Patch("/", s.handleUpdate)
				r.Get("/history", s.handleHistory)
				r.Post("/transition", s.handleTransition)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRequest struct {
	EventID       string    `json:"eventId"`
	HoldExpiresAt time.Time `json:"holdExpiresAt"`
	Notes         string    `json:"notes"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body", nil)
		return
	}
	if body.EventID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "eventId is required", nil)
		return
	}

	p, err := s.engine.CreatePipeline(r.Context(), api.CreatePipelineRequest{
		EventID:        body.EventID,
		OrganizationID: OrganizationFromContext(r.Context()),
		Actor:          actorFrom(r),
		HoldExpiresAt:  body.HoldExpiresAt,
		Notes:          body.Notes,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	opts := api.PipelineListOptions{
		OrganizationID: OrganizationFromContext(r.Context()),
	}
	if stage := r.URL.Query().Get("stage"); stage != "" {
		st := api.Stage(stage)
		if !st.IsValid() {
			writeError(w, http.StatusBadRequest, "bad_request", "unknown stage "+stage, nil)
			return
		}
		opts.Stage = st
	}

	pipelines, err := s.engine.ListPipelines(r.Context(), opts)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if pipelines == nil {
		pipelines = []*api.Pipeline{}
	}

	writeJSON(w, http.StatusOK, pipelines)
}

// loadScoped fetches a pipeline and hides records of other tenants
// behind a 404.
func (s *Server) loadScoped(w http.ResponseWriter, r *http.Request) (*api.Pipeline, bool) {
	eventID := chi.URLParam(r, "eventID")
	p, err := s.engine.GetPipeline(r.Context(), eventID)
	if err != nil {
		s.writeEngineError(w, err)
		return nil, false
	}
	if p.OrganizationID != OrganizationFromContext(r.Context()) {
		writeError(w, http.StatusNotFound, "not_found", "pipeline not found: "+eventID, nil)
		return nil, false
	}
	return p, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadScoped(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadScoped(w, r)
	if !ok {
		return
	}
	history := p.History
	if history == nil {
		history = []api.StageTransition{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadScoped(w, r)
	if !ok {
		return
	}

	var update api.PipelineUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body", nil)
		return
	}

	updated, err := s.engine.UpdatePipeline(r.Context(), p.EventID, update, actorFrom(r))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

type transitionRequest struct {
	TargetStage string             `json:"targetStage"`
	Notes       string             `json:"notes"`
	Updates     api.PipelineUpdate `json:"updates"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadScoped(w, r)
	if !ok {
		return
	}

	var body transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body", nil)
		return
	}
	target := api.Stage(body.TargetStage)
	if !target.IsValid() {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown stage "+body.TargetStage, nil)
		return
	}

	updated, err := s.engine.Transition(r.Context(), p.EventID, api.TransitionRequest{
		To:      target,
		Actor:   actorFrom(r),
		Notes:   body.Notes,
		Updates: body.Updates,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code          string   `json:"code"`
	Message       string   `json:"message"`
	MissingFields []string `json:"missingFields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, missing []string) {
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:          code,
		Message:       message,
		MissingFields: missing,
	}})
}

// writeEngineError maps the pipeline error taxonomy onto HTTP statuses:
// 404 for missing records, 409 for illegal edges and lost races, 422
// for missing required fields.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, api.ErrPipelineNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, api.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, api.ErrPipelineExists):
		writeError(w, http.StatusConflict, "already_exists", err.Error(), nil)
	default:
		if _, ok := api.IsTransitionNotAllowed(err); ok {
			writeError(w, http.StatusConflict, "transition_not_allowed", err.Error(), nil)
			return
		}
		if m, ok := api.IsMissingRequiredFields(err); ok {
			writeError(w, http.StatusUnprocessableEntity, "missing_required_fields", err.Error(), m.Fields)
			return
		}
		s.logger.Error().Err(err).Msg("unhandled_engine_error")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", nil)
	}
}
