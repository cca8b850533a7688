package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/noticing/internal/auth"
	"github.com/noticing/internal/config"
	"github.com/noticing/internal/db"
	"github.com/noticing/internal/events"
	"github.com/noticing/internal/handlers"
	"github.com/noticing/internal/jsonrpc"
	"github.com/noticing/internal/logger"
	"github.com/noticing/internal/metrics"
	"github.com/noticing/internal/service"
	"github.com/noticing/internal/textgen"
	"github.com/noticing/internal/views"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewConnection(ctx, cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	// Migrations are applied separately with cmd/migrate.
	log.Info("database connected; run cmd/migrate to update the schema")

	broadcaster := events.NewBroadcaster(log)
	broadcaster.Start()
	defer broadcaster.Stop()

	cache := views.NewCache(broadcaster)

	// A missing API key quietly disables weekly reflections.
	var generator textgen.Generator
	if cfg.ReflectionsEnabled() {
		client, err := textgen.NewClient(textgen.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			return err
		}
		generator = client
	} else {
		log.Warn("OPENAI_API_KEY is not set; weekly reflections are disabled")
	}

	identity := auth.NewClient(cfg.AuthURL, cfg.AuthClientID, cfg.AuthClientSecret)
	cookies := auth.Cookies{Secure: cfg.IsProduction()}

	journalService := service.NewJournalService(database, cache, log)
	reflectionService := service.NewReflectionService(database, generator, cache, log)

	rpcServer := jsonrpc.NewServer(log)
	handlers.NewJournalHandlers(journalService, reflectionService).Register(rpcServer)

	router := mux.NewRouter()
	router.Use(handlers.RequestID, handlers.Logging(log), metrics.InstrumentHandler, handlers.Recovery(log))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	}).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	router.HandleFunc("/api/events", handlers.EventsHandler(broadcaster)).Methods("GET")

	app := router.NewRoute().Subrouter()
	app.Use(auth.Middleware(identity, cookies, log))
	app.Handle("/api/rpc", rpcServer).Methods("POST")
	handlers.NewWebHandlers(journalService, reflectionService, identity, cookies, cache, cfg.PublicURL, log).Register(app)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.Int("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	broadcaster.Stop()
	return srv.Shutdown(shutdownCtx)
}
