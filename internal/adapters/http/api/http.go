// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/okian/whisper/internal/app"
	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/internal/domain/progression"
	"github.com/okian/whisper/pkg/logger"
	"github.com/okian/whisper/pkg/metrics"
)

const defaultMaxTopLimit = 100

// PlayerService covers registration, reads and evaluation of players.
type PlayerService interface {
	RegisterPlayer(ctx context.Context, p model.Player) (model.Player, error)
	Player(ctx context.Context, id int64) (service.PlayerView, error)
	TopPlayers(ctx context.Context, n int) ([]service.PlayerView, error)
	Evaluate(ctx context.Context, req service.EvaluationRequest) (progression.Result, error)
	EvaluateAll(ctx context.Context, reqs []service.EvaluationRequest) service.BatchReport
	EvaluateActivity(ctx context.Context, posts []model.Post, from, to time.Time, statuses map[int64]string) (service.BatchReport, error)
}

// PostService accepts posts for asynchronous processing.
type PostService interface {
	SubmitPost(ctx context.Context, p model.Post) (service.SubmitStatus, error)
}

// SocialService exposes relationships and profiles.
type SocialService interface {
	Relationship(ctx context.Context, source, target int64) (model.RelationshipEntry, error)
	Profile(ctx context.Context, id int64) (model.SocialProfile, error)
	ProfileHistory(ctx context.Context, id int64) ([]model.ProfileSnapshot, error)
	RecomputeAllProfiles(ctx context.Context) service.BatchReport
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	PlayerService
	PostService
	SocialService
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	logger      logger.Logger
	maxTopLimit int

	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	playersHandler *PlayersHandler
	postsHandler   *PostsHandler
	socialHandler  *SocialHandler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxTopLimit caps the limit accepted by GET /players/top.
func WithMaxTopLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxTopLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{maxTopLimit: defaultMaxTopLimit}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}

	r := responder{log: s.logger}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.playersHandler = &PlayersHandler{responder: r, deps: deps, maxLimit: s.maxTopLimit}
	s.postsHandler = &PostsHandler{responder: r, deps: deps}
	s.socialHandler = &SocialHandler{responder: r, deps: deps}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /players", MetricsMiddleware(s.playersHandler.HandleRegister, "players_register"))
	mux.HandleFunc("GET /players/top", MetricsMiddleware(s.playersHandler.HandleTop, "players_top"))
	mux.HandleFunc("GET /players/{id}", MetricsMiddleware(s.playersHandler.HandleGet, "players_get"))
	mux.HandleFunc("POST /players/{id}/evaluate", MetricsMiddleware(s.playersHandler.HandleEvaluate, "players_evaluate"))
	mux.HandleFunc("POST /evaluations", MetricsMiddleware(s.playersHandler.HandleEvaluateBatch, "evaluations"))
	mux.HandleFunc("POST /evaluations/activity", MetricsMiddleware(s.playersHandler.HandleEvaluateActivity, "evaluations_activity"))

	mux.HandleFunc("POST /posts", MetricsMiddleware(s.postsHandler.HandlePostSubmit, "posts"))

	mux.HandleFunc("GET /relationships/{source}/{target}", MetricsMiddleware(s.socialHandler.HandleRelationship, "relationships"))
	mux.HandleFunc("GET /profiles/{id}", MetricsMiddleware(s.socialHandler.HandleProfile, "profiles_get"))
	mux.HandleFunc("GET /profiles/{id}/history", MetricsMiddleware(s.socialHandler.HandleProfileHistory, "profiles_history"))
	mux.HandleFunc("POST /profiles/recompute", MetricsMiddleware(s.socialHandler.HandleRecompute, "profiles_recompute"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// responder turns service errors into JSON error bodies.
type responder struct {
	log logger.Logger
}

func (r responder) fail(w http.ResponseWriter, req *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		r.log.Error(req.Context(), "request failed",
			logger.String("op", op),
			logger.String("path", req.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrBadRequest, name)
	}
	return id, nil
}
