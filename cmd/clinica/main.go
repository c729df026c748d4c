package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/EdwardMor3h/topico-enfermeria/internal/adapters/legacy"
	"github.com/EdwardMor3h/topico-enfermeria/internal/alert"
	"github.com/EdwardMor3h/topico-enfermeria/internal/appointment"
	"github.com/EdwardMor3h/topico-enfermeria/internal/audit"
	"github.com/EdwardMor3h/topico-enfermeria/internal/patient"
	recordapi "github.com/EdwardMor3h/topico-enfermeria/internal/record/api"
	recorddomain "github.com/EdwardMor3h/topico-enfermeria/internal/record/domain"
	recordinfra "github.com/EdwardMor3h/topico-enfermeria/internal/record/infrastructure"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/config"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/database"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/events"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/metrics"
	secmiddleware "github.com/EdwardMor3h/topico-enfermeria/internal/shared/middleware"
	"github.com/EdwardMor3h/topico-enfermeria/internal/staff"
)

// App holds the process-wide dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    events.EventBus
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// The clinic cannot run without its database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	// Event streaming is best-effort: without EventStoreDB the clinic
	// keeps working, it just stops publishing.
	var bus events.EventBus = events.NopBus{}
	realBus, err := events.NewBus(ctx, cfg.EventStore)
	if err != nil {
		fmt.Printf("Warning: EventStoreDB not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		bus = realBus
		defer realBus.Close()
		fmt.Println("EventStoreDB event bus initialized")
	}
	app.Bus = bus

	// Alert pipeline
	alertRepo := alert.NewRepository(db.Pool)
	alertService := alert.NewService(alertRepo, bus, alert.DefaultServiceConfig())
	if err := alertService.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start alert service: %v\n", err)
		os.Exit(1)
	}
	defer alertService.Stop()

	// Repositories and handlers
	patientRepo := patient.NewRepository(db.Pool)
	patientHandler := patient.NewHandler(patientRepo, bus)

	staffRepo := staff.NewRepository(db.Pool)
	staffHandler := staff.NewHandler(staffRepo)

	appointmentRepo := appointment.NewRepository(db.Pool)
	appointmentHandler := appointment.NewHandler(appointmentRepo, alertService, bus)

	recordRepo := recordinfra.NewPostgresRepository(db.Pool)
	workflow := recorddomain.NewWorkflow(recordRepo, recordRepo, recordRepo, alertService, bus)
	recordHandler := recordapi.NewHandler(workflow)

	alertHandler := alert.NewHandler(alertRepo)

	// Audit chain
	auditRepo := audit.NewRepository(db.Pool)
	if err := auditRepo.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "audit initialization failed: %v\n", err)
		os.Exit(1)
	}
	auditHandler := audit.NewHandler(auditRepo)

	if _, ok := bus.(events.NopBus); !ok {
		auditSubscriber := audit.NewSubscriber(auditRepo, bus)
		if err := auditSubscriber.Start(ctx); err != nil {
			fmt.Printf("Warning: audit subscriber failed to start: %v\n", err)
		} else {
			fmt.Println("Audit subscriber started")
		}
	}

	// Legacy practice-management import
	if cfg.Legacy.Enabled {
		importer := legacy.New(cfg.Legacy, patientRepo)
		if err := importer.Start(ctx); err != nil {
			fmt.Printf("Warning: legacy importer failed to start: %v\n", err)
		} else {
			fmt.Printf("Legacy importer polling %s every %s\n",
				cfg.Legacy.PatientTable, cfg.Legacy.PollInterval)
			defer importer.Stop(ctx)
		}
	}

	rateLimiter := secmiddleware.NewIPRateLimiter(10, 30)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))
	r.Use(secmiddleware.MaxBodySize)
	r.Use(rateLimiter.Middleware)
	r.Use(metrics.Middleware)

	// Unauthenticated surface
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth))

		r.Mount("/patients", patientHandler.Routes())
		r.Mount("/staff", staffHandler.Routes())
		r.Mount("/appointments", appointmentHandler.Routes())
		r.Mount("/alerts", alertHandler.Routes())
		r.Mount("/audit", auditHandler.Routes())
		// consultations and histories
		r.Mount("/", recordHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("==========================================")
	fmt.Println("Topico de Enfermeria - Clinic Management")
	fmt.Println("==========================================")
	fmt.Printf("Environment: %s\n", cfg.Server.Env)
	fmt.Printf("Server:      http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:         http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:      http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Println("==========================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Topico de Enfermeria",
		"version": "1.0.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if _, ok := app.Bus.(events.NopBus); ok {
			checks["eventstore"] = "not configured"
		} else if err := app.Bus.Health(); err != nil {
			checks["eventstore"] = "not ready: " + err.Error()
		} else {
			checks["eventstore"] = "ready"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
