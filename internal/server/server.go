package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/sarpras-lapor/apiserver/config"
	"github.com/sarpras-lapor/apiserver/internal/auth"
	"github.com/sarpras-lapor/apiserver/internal/cache"
	"github.com/sarpras-lapor/apiserver/internal/db"
	"github.com/sarpras-lapor/apiserver/internal/events"
	"github.com/sarpras-lapor/apiserver/internal/handlers"
	"github.com/sarpras-lapor/apiserver/internal/mq"
	"github.com/sarpras-lapor/apiserver/internal/qr"
	"github.com/sarpras-lapor/apiserver/internal/services"
	"github.com/sarpras-lapor/apiserver/internal/storage"
	"github.com/sarpras-lapor/apiserver/internal/store"
	"github.com/sirupsen/logrus"
)

const qrImageSize = 256

// Deps are the collaborators the router is built from. Revocations,
// Photos, Publisher and DB are optional.
type Deps struct {
	Config      config.Config
	Logger      logrus.FieldLogger
	DB          handlers.Pinger
	Users       services.UserRepository
	Sarpras     services.SarprasRepository
	Laporan     services.LaporanRepository
	Dashboard   services.DashboardRepository
	Revocations auth.RevocationList
	Photos      services.PhotoStore
	Publisher   *events.Publisher
}

// NewRouter wires services and handlers into the HTTP route table.
func NewRouter(deps Deps) (http.Handler, error) {
	cfg := deps.Config
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	logger := deps.Logger

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	userService := services.NewUserService(deps.Users, tokens, deps.Revocations, logger)
	sarprasService := services.NewSarprasService(deps.Sarpras, qr.NewEncoder(qrImageSize), deps.Publisher, logger)
	laporanService := services.NewLaporanService(deps.Laporan, deps.Sarpras, deps.Photos, cfg.Storage.MaxPhotoBytes, deps.Publisher, logger)
	dashboardService := services.NewDashboardService(deps.Dashboard)

	authn := handlers.NewAuthenticator(tokens, deps.Revocations, logger)
	var rateLimit func(http.Handler) http.Handler
	if cfg.AuthRateLimit != "" {
		var err error
		rateLimit, err = handlers.RateLimit(cfg.AuthRateLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT: %w", err)
		}
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
	)
	router.Get("/healthz", handlers.Healthz(deps.DB))
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, authn, rateLimit, logger)
	})
	router.Route("/laporan", func(r chi.Router) {
		handlers.LaporanRouter(r, laporanService, authn, logger)
	})
	router.Route("/sarpras", func(r chi.Router) {
		handlers.SarprasRouter(r, sarprasService, authn, logger)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, handlers.NewAdminHandler(dashboardService, laporanService, userService, logger), authn)
	})
	router.NotFound(handlers.NotFound)
	return router, nil
}

// Server wraps the HTTP server and the connections it owns.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	redis      *redis.Client
	broker     *mq.MQ
	logger     logrus.FieldLogger
}

// New connects every configured backend and builds the server.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	log := logger.WithField("component", "server")

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	srv := &Server{db: dbConn, logger: log}

	deps := Deps{
		Config:    cfg,
		Logger:    logger,
		DB:        dbConn,
		Users:     store.NewUserRepository(dbConn),
		Sarpras:   store.NewSarprasRepository(dbConn),
		Laporan:   store.NewLaporanRepository(dbConn),
		Dashboard: store.NewDashboardRepository(dbConn),
	}

	if cfg.Redis.Addr != "" {
		srv.redis, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			srv.close()
			return nil, err
		}
		deps.Revocations = cache.NewRevocationStore(srv.redis)
	} else {
		log.Warn("REDIS_ADDR not set, logout will not revoke tokens")
	}

	photos, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		srv.close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	if photos != nil {
		deps.Photos = photos
		log.WithField("bucket", photos.Bucket()).Info("photo storage enabled")
	} else {
		log.Warn("STORAGE_BACKEND not set, photo uploads are disabled")
	}

	srv.broker, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		srv.close()
		return nil, err
	}
	deps.Publisher = events.NewPublisher(srv.broker, cfg.MQ.Channel)
	if srv.broker == nil {
		log.Info("MQ_BACKEND not set, domain events are disabled")
	}

	router, err := NewRouter(deps)
	if err != nil {
		srv.close()
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.WithError(err).Warn("failed to close mq")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
