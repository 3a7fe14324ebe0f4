package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rumornet/arbiter/internal/api/handlers"
	mw "github.com/rumornet/arbiter/internal/api/middleware"
	"github.com/rumornet/arbiter/internal/config"
	"github.com/rumornet/arbiter/internal/domain"
	"github.com/rumornet/arbiter/internal/service"
	"github.com/rumornet/arbiter/internal/store"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Scheduler    *service.SchedulerService
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores. Claim reads go through the frozen-verdict cache.
	claimStore := store.NewCachedClaimStore(store.NewClaimStore(db))
	voteStore := store.NewVoteStore(db)
	oppositionStore := store.NewOppositionStore(db)
	karmaStore := store.NewKarmaStore(db)

	// Services
	karmaSvc := service.NewKarmaService(karmaStore, logger)
	tallySvc := service.NewTallyService(voteStore, karmaSvc, logger)
	claimSvc := service.NewClaimService(claimStore, voteStore, karmaSvc, logger)
	resolutionSvc := service.NewResolutionService(claimStore, tallySvc, karmaSvc, logger)
	oppositionSvc := service.NewOppositionService(oppositionStore, claimStore, voteStore, tallySvc, karmaSvc, logger)
	ghostSvc := service.NewGhostService(claimStore, voteStore, karmaSvc, logger)
	schedulerSvc := service.NewSchedulerService(claimStore, oppositionStore, resolutionSvc, oppositionSvc, logger)
	schedulerSvc.SetInterval(config.SchedulerInterval())
	schedulerSvc.SetConcurrency(config.SchedulerConcurrency())

	// Handlers
	claimHandler := handlers.NewClaimHandler(claimSvc, ghostSvc)
	oppositionHandler := handlers.NewOppositionHandler(oppositionSvc)
	karmaHandler := handlers.NewKarmaHandler(karmaSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Scheduler: schedulerSvc,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))
	r.Use(mw.ParticipantIdentity)

	// Health (no identity)
	r.Get("/health", healthHandler(db))

	// Metrics (no identity)
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1/communities/{community}", func(r chi.Router) {
		// Reads stay anonymous.
		r.Get("/claims", claimHandler.List)
		r.Get("/claims/{id}", claimHandler.GetByID)
		r.Get("/oppositions/{id}", oppositionHandler.GetByID)
		r.Get("/participants/{id}/karma", karmaHandler.Get)

		// Writes require a participant identity.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireParticipant)

			r.Post("/claims", claimHandler.Create)
			r.Post("/claims/{id}/votes", claimHandler.Vote)
			r.Post("/claims/{id}/opposition", oppositionHandler.Create)
			r.Delete("/claims/{id}", claimHandler.Ghost)
			r.Post("/oppositions/{id}/votes", oppositionHandler.Vote)
		})
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that manage the
// scheduler themselves.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy the domain interfaces at compile time.
var (
	_ domain.ClaimStore      = (*store.ClaimStore)(nil)
	_ domain.ClaimStore      = (*store.CachedClaimStore)(nil)
	_ domain.VoteStore       = (*store.VoteStore)(nil)
	_ domain.OppositionStore = (*store.OppositionStore)(nil)
	_ domain.KarmaStore      = (*store.KarmaStore)(nil)
)
