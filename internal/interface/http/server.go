// Package http exposes the practice, economy, pet and leaderboard operations
// as a JSON API over net/http.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/studypets/studypets-core/internal/application/command"
	"github.com/studypets/studypets-core/internal/application/query"
	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/interface/http/handlers"
	"github.com/studypets/studypets-core/pkg/logger"
)

// Config holds listener and edge settings.
type Config struct {
	Addr string // e.g. ":8080"

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxBodyBytes int64

	// AllowedOrigins enables CORS for the listed origins; "*" allows any.
	AllowedOrigins []string

	// RequestsPerMinute is the per-client budget; zero disables limiting.
	RequestsPerMinute int

	Version string
}

func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       time.Minute,
		MaxBodyBytes:      1 << 20,
		RequestsPerMinute: 120,
		Version:           "dev",
	}
}

// Dependencies are the application handlers behind the routes. A route whose
// handler is nil answers 501.
type Dependencies struct {
	Auth   *handlers.Authenticator
	Policy *access.Policy

	CreateSession     *command.CreateSessionHandler
	SubmitAnswer      *command.SubmitAnswerHandler
	CompleteSession   *command.CompleteSessionHandler
	DailyStatus       *command.DailyStatusHandler
	ExchangeFood      *command.ExchangeFoodHandler
	Pull              *command.PullHandler
	PetEvolution      *command.PetEvolutionHandler
	CombinePets       *command.CombinePetsHandler
	AcknowledgeReward *command.AcknowledgeRewardHandler
	SyncSubscription  *command.SyncSubscriptionHandler
	DistributeRewards *command.DistributeWeeklyRewardsHandler

	Students    *query.StudentHandler
	Practice    *query.PracticeHandler
	Collection  *query.CollectionHandler
	Leaderboard *query.GetWeeklyLeaderboardHandler

	HealthChecker handlers.HealthChecker
	Logger        *slog.Logger
}

// Server is the API's HTTP front.
type Server struct {
	config  Config
	deps    Dependencies
	logger  *slog.Logger
	router  *http.ServeMux
	handler http.Handler
	limiter *clientLimiter
	srv     *http.Server

	mu        sync.Mutex
	startedAt time.Time
}

func NewServer(config Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		config: config,
		deps:   deps,
		logger: log.With(logger.Component("http")),
		router: http.NewServeMux(),
	}
	if config.RequestsPerMinute > 0 {
		s.limiter = newClientLimiter(config.RequestsPerMinute)
	}

	s.setupRoutes()
	s.handler = handlers.Chain(s.middleware()...)(s.router)
	s.srv = &http.Server{
		Addr:              config.Addr,
		Handler:           s.handler,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}
	return s
}

// Handler is the routed handler with every middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)

	// ─────────────────────────────────────────────────────────────────────────
	// Practice sessions (caller acts on themself)
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("POST /api/v1/sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /api/v1/sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("POST /api/v1/sessions/{id}/answers", s.handleSubmitAnswer)
	s.router.HandleFunc("POST /api/v1/sessions/{id}/complete", s.handleCompleteSession)

	// ─────────────────────────────────────────────────────────────────────────
	// Daily status & economy
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("PUT /api/v1/daily/mood", s.handleSetMood)
	s.router.HandleFunc("POST /api/v1/daily/spin", s.handleSpin)
	s.router.HandleFunc("POST /api/v1/economy/food", s.handleExchangeFood)

	// ─────────────────────────────────────────────────────────────────────────
	// Gacha & pets
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("POST /api/v1/gacha/pull", s.handlePull)
	s.router.HandleFunc("POST /api/v1/pets/combine", s.handleCombinePets)
	s.router.HandleFunc("POST /api/v1/pets/{id}/feed", s.handleFeedPet)
	s.router.HandleFunc("POST /api/v1/pets/{id}/evolve", s.handleEvolvePet)

	// ─────────────────────────────────────────────────────────────────────────
	// Leaderboard & rewards
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/leaderboard/weekly", s.handleWeeklyLeaderboard)
	s.router.HandleFunc("POST /api/v1/rewards/{id}/acknowledge", s.handleAcknowledgeReward)

	// ─────────────────────────────────────────────────────────────────────────
	// Student reads ({id} may be "me")
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/students/{id}/wallet", s.handleGetWallet)
	s.router.HandleFunc("GET /api/v1/students/{id}/streak", s.handleGetStreak)
	s.router.HandleFunc("GET /api/v1/students/{id}/daily", s.handleGetDailyStatus)
	s.router.HandleFunc("GET /api/v1/students/{id}/sessions", s.handleListSessions)
	s.router.HandleFunc("GET /api/v1/students/{id}/topics/{topic}/unseen", s.handleUnseenQuestions)
	s.router.HandleFunc("GET /api/v1/students/{id}/pets", s.handleListPets)
	s.router.HandleFunc("GET /api/v1/students/{id}/rewards/unseen", s.handleUnseenRewards)

	// ─────────────────────────────────────────────────────────────────────────
	// Admin / integrations
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("PUT /api/v1/admin/students/{id}/subscription", s.handleSyncSubscription)
	s.router.HandleFunc("POST /api/v1/admin/weekly-rewards", s.handleDistributeRewards)
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

var errAlreadyRunning = errors.New("http server already running")

// Start serves until Shutdown and then returns nil.
func (s *Server) Start() error {
	s.mu.Lock()
	if !s.startedAt.IsZero() {
		s.mu.Unlock()
		return errAlreadyRunning
	}
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "address", s.config.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	running := !s.startedAt.IsZero()
	s.startedAt = time.Time{}
	s.mu.Unlock()

	if s.limiter != nil {
		s.limiter.stop()
	}
	if !running {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}

// Uptime is zero while the server is not serving.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}
