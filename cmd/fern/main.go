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

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/leadads"
	"github.com/Ramsey-B/fern/pkg/meta"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/oauthstate"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := newZapLogger(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("fern exited with an error")
		os.Exit(1)
	}
}

func newZapLogger(level string, pretty bool) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if pretty {
		zapCfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	return zapCfg.Build()
}

func run(cfg *config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker(cfg.Version)

	tracer := tracing.NewProvider(cfg.AppName, cfg.OTLPEnabled, tracing.OTLPConfig{
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
	})
	pg := database.NewPostgres(&database.PostgresConfig{
		DSN:             cfg.DatabaseDSN(),
		DatabaseName:    cfg.DatabaseName,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
		Migration: &database.MigrationConfig{
			MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
			Version:             uint(max(cfg.DatabaseMigrationVersion, 0)),
			Force:               cfg.DatabaseMigrationForce,
			AutoRollback:        cfg.DatabaseMigrationAutoRollback,
		},
	}, logger)
	redisClient := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(tracer)
	boot.AddDependency(pg)
	boot.AddDependency(redisClient)

	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(kafka.ParseConfig(cfg.KafkaBrokers, cfg.KafkaIntegrationTopic), logger)
		boot.AddDependency(producer)
	}

	if err := boot.Start(ctx); err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := boot.Stop(stopCtx); err != nil {
			logger.WithError(err).Error("failed to stop dependencies")
		}
	}()

	checker.AddCheck("database", pg, true)
	checker.AddCheck("redis", redisClient, true)

	db := pg.DB()
	settingsRepo := repositories.NewMetaAppConfigRepository(db, logger)
	integrationRepo := repositories.NewIntegrationRepository(db, logger)
	formConfigRepo := repositories.NewFormConfigRepository(db, logger)

	if err := seedSettings(ctx, cfg, settingsRepo, logger); err != nil {
		return err
	}

	stateCodec, err := oauthstate.NewCodec(oauthstate.Config{
		Secret: cfg.OAuthStateSecret,
		TTL:    cfg.OAuthStateTTL,
	}, redisClient, logger)
	if err != nil {
		return fmt.Errorf("oauth state: %w", err)
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.MetaRequestTimeout
	graph := meta.NewClient(meta.Config{
		GraphBaseURL:  cfg.MetaGraphBaseURL,
		DialogBaseURL: cfg.MetaDialogBaseURL,
		GraphVersion:  cfg.MetaGraphVersion,
		RedirectURI:   cfg.MetaRedirectURI,
	}, httpclient.NewClient(httpCfg, logger), logger)

	deps := leadads.Dependencies{
		Graph:        graph,
		State:        stateCodec,
		Settings:     settingsRepo,
		Integrations: integrationRepo,
		FormConfigs:  formConfigRepo,
		Locks:        redis.NewLocker(redisClient, "lock:"),
	}
	if producer != nil {
		deps.Events = producer
	}
	service := leadads.NewService(leadads.Config{
		SettingsURL:     cfg.MetaSettingsURL,
		PageConcurrency: cfg.MetaPageConcurrency,
	}, deps, logger)

	auth := middleware.HeaderAuthentication()
	if cfg.AuthEnabled {
		verifier, err := middleware.NewVerifier(ctx, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return fmt.Errorf("oidc provider: %w", err)
		}
		auth = middleware.Authentication(logger, verifier)
	} else {
		logger.Warn("Authentication is disabled; the X-User-ID header identifies callers")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	handlers.NewOAuthHandler(service).RegisterRoutes(api, auth)
	handlers.NewIntegrationHandler(service).RegisterRoutes(api, auth)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedSettings writes META_APP_ID/META_APP_SECRET into the settings store when both are set.
func seedSettings(ctx context.Context, cfg *config.Config, repo repositories.MetaAppConfigRepo, logger ectologger.Logger) error {
	if cfg.MetaAppID == "" || cfg.MetaAppSecret == "" {
		return nil
	}
	err := repo.Upsert(ctx, &models.MetaAppConfig{
		AppID:     cfg.MetaAppID,
		AppSecret: cfg.MetaAppSecret,
		IsActive:  true,
	})
	if err != nil {
		return fmt.Errorf("seed meta app config: %w", err)
	}
	logger.WithContext(ctx).WithField("app_id", cfg.MetaAppID).Info("Seeded meta app config")
	return nil
}
