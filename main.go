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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"medibook/internal/config"
	"medibook/internal/database"
	"medibook/internal/logging"
	"medibook/internal/metrics"
	"medibook/internal/realtime"
	"medibook/internal/repository"
	"medibook/internal/repository/memory"
	"medibook/internal/routes"
	"medibook/internal/services"
	"medibook/internal/sessions"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	close        func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*stores, error) {
	if cfg.DataStore == config.DataStoreMemory {
		logger.Warn("using in-memory data store; data is lost on restart")
		store := memory.NewStore()
		return &stores{
			doctors:      store.Doctors(),
			appointments: store.Appointments(),
			users:        store.Users(),
			close:        func(context.Context) error { return nil },
		}, nil
	}

	// The connection is opened by the first query; indexes are ensured
	// best-effort so the server can start before the database is reachable.
	holder := database.NewHolder(cfg.Mongo)
	if err := repository.EnsureIndexes(ctx, holder); err != nil {
		logger.Warn("failed to ensure indexes", "error", err)
	}
	return &stores{
		doctors:      repository.NewMongoDoctorRepository(holder),
		appointments: repository.NewMongoAppointmentRepository(holder),
		users:        repository.NewMongoUserRepository(holder),
		close:        holder.Close,
	}, nil
}

func openSessions(ctx context.Context, cfg *config.Config) (sessions.Store, func() error, error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		client, err := database.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return sessions.NewRedisStore(client), client.Close, nil
	case config.SessionStoreSQL:
		db, err := database.OpenSQL(cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("sql handle: %w", err)
		}
		return sessions.NewGormStore(db), sqlDB.Close, nil
	default:
		return sessions.NewMemoryStore(), func() error { return nil }, nil
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	startupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	data, err := openStores(startupCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open data store: %w", err)
	}
	sessionStore, closeSessions, err := openSessions(startupCtx, cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer closeSessions()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	doctorService := services.NewDoctorService(data.doctors, logger)
	appointmentService := services.NewAppointmentService(data.appointments, logger, m)
	authService := services.NewAuthService(data.users, data.doctors, sessionStore, cfg, logger, m)

	hub := realtime.NewHub(logger, cfg.Origin)
	go hub.Run(ctx)
	appointmentService.Subscribe(hub.AppointmentBooked)

	router := routes.NewRouter(routes.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Metrics:      m,
		Gatherer:     reg,
		Doctors:      doctorService,
		Appointments: appointmentService,
		Auth:         authService,
		Hub:          hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "data_store", cfg.DataStore, "session_store", cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	return data.close(shutdownCtx)
}
