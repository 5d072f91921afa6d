package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/account"
	"github.com/clinic/clinic/internal/domain/chat"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/hipaa"
	"github.com/clinic/clinic/internal/platform/middleware"
)

// stores bundles the repositories behind the HTTP surface.
type stores struct {
	users    account.Repository
	patients patient.Repository
	health   db.Pinger
	closers  []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type memoryPinger struct{}

func (memoryPinger) Ping(context.Context) error { return nil }

func memoryStores(enc hipaa.FieldEncryptor) *stores {
	return &stores{
		users:    account.NewMemoryRepo(),
		patients: patient.NewMemoryRepo(enc),
		health:   memoryPinger{},
	}
}

func hipaaService(cfg *config.Config, logger zerolog.Logger) (*hipaa.EncryptionService, error) {
	return hipaa.NewEncryptionService(cfg.HIPAAEncryptionKey, logger)
}

// openStores connects to PostgreSQL and applies pending migrations, or
// returns in-process stores when DATABASE_URL is memory://.
func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger, enc hipaa.FieldEncryptor) (*stores, error) {
	if cfg.UsesMemoryStore() {
		logger.Warn().Msg("using in-memory stores; data is lost on restart")
		return memoryStores(enc), nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to database")

	m := db.NewMigrator(pool, logger)
	version, err := m.Up(ctx)
	_ = m.Close()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Int64("version", version).Msg("database schema up to date")

	return &stores{
		users:    account.NewUserRepo(pool),
		patients: patient.NewPatientRepo(pool, enc),
		health:   pool,
		closers:  []func(){pool.Close},
	}, nil
}

// newServer wires services and routes onto a new echo instance.
func newServer(cfg *config.Config, logger zerolog.Logger, st *stores, authority *auth.TokenAuthority) (*echo.Echo, error) {
	responder, err := chat.NewResponder(cfg.ChatMode)
	if err != nil {
		return nil, err
	}

	accountSvc := account.NewService(st.users, auth.NewBcryptHasher(cfg.BcryptCost), authority)
	patientSvc := patient.NewService(st.patients, time.Now)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(echomw.RemoveTrailingSlash())

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit("1M"))

	// Public probes
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Dental Clinic Patient Assistant API"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
	e.GET("/health/db", db.HealthHandler(st.health))

	api := e.Group("/api", auth.RequireIdentity(authority, accountSvc, auth.AuthSkipper))

	account.NewHandler(accountSvc).RegisterRoutes(api.Group("/auth"))
	patient.NewHandler(patientSvc).RegisterRoutes(api.Group("/patients", middleware.Audit(logger)))
	chat.NewHandler(responder).RegisterRoutes(api.Group("/chat", middleware.Audit(logger)))

	return e, nil
}
