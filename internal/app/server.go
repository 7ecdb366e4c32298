// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"dedupe-service/internal/config"
	"dedupe-service/internal/db"
	authHandler "dedupe-service/internal/handlers/auth"
	customerHandler "dedupe-service/internal/handlers/customer"
	dedupeHandler "dedupe-service/internal/handlers/dedupe"
	wsHandler "dedupe-service/internal/handlers/websocket"
	"dedupe-service/internal/domain/customer"
	"dedupe-service/internal/domain/dedupe"
	"dedupe-service/internal/middleware"
	"dedupe-service/internal/pkg/jwt"
	"dedupe-service/internal/pkg/lock"
	"dedupe-service/internal/pkg/metrics"
	"dedupe-service/internal/pkg/session"
	"dedupe-service/internal/repository/memory"
	"dedupe-service/internal/repository/postgres"
	authUsecase "dedupe-service/internal/service/auth"
	customersvc "dedupe-service/internal/service/customer"
	dedupesvc "dedupe-service/internal/service/dedupe"
	"dedupe-service/internal/websocket"
	wsHandlers "dedupe-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Server struct {
	cfg      config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	registry *prometheus.Registry
	http     *http.Server
	redis    *redis.Client

	hubCancel context.CancelFunc
	closers   []func() error

	// ready is closed once setup has finished, successfully or not.
	ready     chan struct{}
	readyOnce sync.Once
}

func NewServer() *Server {
	return newServer(config.Load())
}

func newServer(cfg config.AppConfig) *Server {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	return &Server{
		cfg:      cfg,
		engine:   engine,
		registry: prometheus.NewRegistry(),
		http: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ready: make(chan struct{}),
	}
}

// Start wires every component and serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	if err := s.setup(context.Background()); err != nil {
		return err
	}

	s.logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) setup(ctx context.Context) error {
	defer s.readyOnce.Do(func() { close(s.ready) })

	// ----- Logger -----
	logger, err := s.buildLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	s.logger = logger

	// ----- Storage -----
	repo, err := s.buildRepository(ctx)
	if err != nil {
		return err
	}

	// ----- Merge locks -----
	locker, err := s.buildLocker(ctx)
	if err != nil {
		return err
	}

	// ----- Auth -----
	var verifier authUsecase.TokenVerifier
	if !s.cfg.AuthDisabled {
		v, err := jwt.LoadVerifier(s.cfg.JWT)
		if err != nil {
			return fmt.Errorf("failed to load JWT verifier: %w", err)
		}
		verifier = v
	} else {
		logger.Warn("authentication disabled, every caller acts as a local admin")
	}

	var blacklist session.Blacklist = session.NewMemoryBlacklist()
	if s.redis != nil {
		blacklist = session.NewRedisBlacklist(s.redis)
	}
	authService := authUsecase.NewAuthService(verifier, blacklist, s.cfg.JWT.TTL, logger)

	// ----- Metrics -----
	var dedupeMetrics *metrics.DedupeMetrics
	if s.cfg.MetricsEnabled {
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		dedupeMetrics = metrics.New(s.registry)
	}

	// ----- Services -----
	dedupeService := dedupesvc.NewDedupeService(repo, locker, logger, dedupesvc.Options{
		ClaimMode:     dedupe.ParseClaimMode(s.cfg.ClaimMode),
		ExcludeMerged: s.cfg.ExcludeMerged,
		Metrics:       dedupeMetrics,
	})
	customerService := customersvc.NewCustomerService(repo, logger)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(authService, s.cfg.AuthDisabled, logger)
	if err := hub.RegisterHandler(wsHandlers.NewDedupeHandler(dedupeService, logger)); err != nil {
		return fmt.Errorf("failed to register websocket handler: %w", err)
	}
	dedupeService.SetNotifier(hub)
	authService.OnRevoke(func(jti string) { hub.DropToken(jti) })

	hubCtx, cancel := context.WithCancel(context.Background())
	s.hubCancel = cancel
	go hub.Run(hubCtx)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService, s.cfg.AuthDisabled)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(s.cfg.AllowedOrigins),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:     authHandler.NewAuthHandler(authService, logger),
		DedupeHandler:   dedupeHandler.NewDedupeHandler(dedupeService, logger),
		CustomerHandler: customerHandler.NewCustomerHandler(customerService),
		WSHandler:       wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigins, logger),
		AuthMiddleware:  authMiddleware,
	}
	if s.cfg.MetricsEnabled {
		handlers.Metrics = s.registry
	}
	SetupRouter(s.engine, logger, handlers)

	return nil
}

func (s *Server) buildLogger() (*zap.Logger, error) {
	if s.cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (s *Server) buildRepository(ctx context.Context) (customer.Repository, error) {
	switch s.cfg.StoreDriver {
	case "memory":
		s.logger.Warn("using in-memory record store, data is lost on restart")
		return memory.NewCustomerRecordRepository(), nil

	case "postgres", "":
		pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		store := postgres.NewDB(pool)
		s.closers = append(s.closers, func() error {
			store.Close()
			return nil
		})

		repo := postgres.NewCustomerRecordRepository(store)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare schema: %w", err)
		}
		s.logger.Info("connected to PostgreSQL")
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", s.cfg.StoreDriver)
	}
}

func (s *Server) buildLocker(ctx context.Context) (lock.Locker, error) {
	opts := lock.Options{
		TTL:         s.cfg.MergeLockTTL,
		WaitTimeout: s.cfg.MergeLockTimeout,
	}

	switch s.cfg.LockDriver {
	case "local":
		return lock.NewLocalLocker(opts), nil

	case "redis", "":
		client, err := db.NewRedisClient(ctx, db.RedisConfig{
			Address:  s.cfg.RedisAddr,
			Password: s.cfg.RedisPass,
			DB:       s.cfg.RedisDB,
			PoolSize: 10,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.redis = client
		s.logger.Info("connected to Redis", zap.String("addr", s.cfg.RedisAddr))
		return lock.NewRedisLocker(client, "dedupe:lock:", opts), nil

	default:
		return nil, fmt.Errorf("unknown LOCK_DRIVER %q", s.cfg.LockDriver)
	}
}

// Shutdown stops accepting requests, then releases connections.
func (s *Server) Shutdown(ctx context.Context) error {
	// Start may still be wiring components.
	select {
	case <-s.ready:
	case <-ctx.Done():
		return fmt.Errorf("server still starting: %w", ctx.Err())
	}

	err := s.http.Shutdown(ctx)
	if s.hubCancel != nil {
		s.hubCancel()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i]())
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
	return err
}
