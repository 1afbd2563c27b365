package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/profile"
	"github.com/claude/repcoach/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// EngineOptions carries the evaluation-core tuning the handlers need
// when constructing live sessions.
type EngineOptions struct {
	VisibilityThreshold float64
	FeedbackCooldown    time.Duration
}

// Store is the persistence surface the handlers need, satisfied by
// *storage.DB.
type Store interface {
	InsertSession(ctx context.Context, row models.SessionRow) (bool, error)
	InsertSessionReps(ctx context.Context, rows []models.SessionRepRow) (int64, error)
	InsertFeedbackEvents(ctx context.Context, rows []models.FeedbackEventRow) (int64, error)
	QuerySessions(ctx context.Context, start, end time.Time, exerciseID string) ([]models.SessionRow, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*storage.SessionDetail, error)
	GetSummaryStats(ctx context.Context) (*storage.SummaryStats, error)
	GetScoreTrend(ctx context.Context, exerciseID string, start, end time.Time, bucket string) ([]storage.ScoreTrendPoint, error)
	GetPeriodStats(ctx context.Context, exerciseID string, start, end time.Time) (*storage.PeriodStats, error)
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Store
	registry *profile.Registry
	sessions *sessionManager
	engine   EngineOptions
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(db Store, registry *profile.Registry, engine EngineOptions, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:       db,
		registry: registry,
		sessions: newSessionManager(),
		engine:   engine,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Session lifecycle + import (API key required: these mutate)
	s.router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/", s.handleCreateSession)
		r.Post("/import", s.handleImportSession)
		r.Post("/{id}/frames", s.handleIngestFrame)
		r.Post("/{id}/finalize", s.handleFinalizeSession)
	})

	// Read API (no auth, tsnet handles access)
	s.router.Get("/api/v1/exercises", s.handleListExercises)
	s.router.Get("/api/v1/sessions", s.handleQuerySessions)
	s.router.Get("/api/v1/sessions/{id}", s.handleGetSession)
	s.router.Get("/api/v1/stats/summary", s.handleStatsSummary)
	s.router.Get("/api/v1/stats/trend", s.handleScoreTrend)
	s.router.Get("/api/v1/stats/period", s.handleStatsPeriod)
}
