// @title           NextHire API
// @version         1.0
// @description     Job-application tracker with Telegram two-factor login.
// @BasePath        /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/nexthire/nexthire-api/internal/api"
	"github.com/nexthire/nexthire-api/internal/core/ports"
	"github.com/nexthire/nexthire-api/internal/core/service"
	"github.com/nexthire/nexthire-api/internal/infrastructure/attempts"
	"github.com/nexthire/nexthire-api/internal/infrastructure/captcha"
	mongodb "github.com/nexthire/nexthire-api/internal/infrastructure/db/mongo"
	redisdb "github.com/nexthire/nexthire-api/internal/infrastructure/db/redis"
	"github.com/nexthire/nexthire-api/internal/infrastructure/forensics"
	"github.com/nexthire/nexthire-api/internal/infrastructure/http/handlers"
	"github.com/nexthire/nexthire-api/internal/infrastructure/queue"
	"github.com/nexthire/nexthire-api/internal/infrastructure/telegram"
	"github.com/nexthire/nexthire-api/internal/pkg/config"
	"github.com/nexthire/nexthire-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		// .env is optional.
		_, _ = os.Stderr.WriteString("warning: loading .env: " + err.Error() + "\n")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "nexthire",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "nexthire-api",
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			log.Error().Err(err).Msg("mongo disconnect")
		}
	}()

	userRepo := mongodb.NewUserRepository(db)
	jobRepo := mongodb.NewJobRepository(db)
	auditRepo := mongodb.NewAuditRepository(db)
	if err := mongodb.EnsureIndexes(ctx, userRepo, jobRepo, auditRepo); err != nil {
		return err
	}

	checks := map[string]handlers.Check{"mongodb": handlers.MongoCheck(db)}

	var counter ports.AttemptCounter
	switch cfg.Attempts.Store {
	case config.AttemptStoreRedis:
		rdb, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		counter = redisdb.NewAttemptStore(rdb, cfg.Attempts.Window)
		checks["redis"] = handlers.RedisCheck(rdb)
	default:
		mem := attempts.NewMemoryStore(cfg.Attempts.Window)
		go mem.Run(ctx, cfg.Attempts.SweepInterval)
		counter = mem
	}

	var geo forensics.CityLookup
	if cfg.GeoIPPath != "" {
		reader, err := forensics.OpenGeoIP(cfg.GeoIPPath)
		if err != nil {
			return err
		}
		defer reader.Close()
		geo = reader
	}
	describer := forensics.NewDescriber(geo)

	// Audit writes outlive the request and the shutdown signal; Close drains them.
	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, auditRepo, logger.Component("audit"))
	dispatcher.Start(context.Background())
	defer dispatcher.Close()

	tracker := service.NewAttemptTracker(counter, dispatcher, describer, service.AttemptPolicy{
		LoginMaxPerIP:    cfg.Attempts.LoginMaxPerIP,
		LoginMaxPerEmail: cfg.Attempts.LoginMaxPerEmail,
		CodeMaxPerEmail:  cfg.Attempts.CodeMaxPerEmail,
		InputMaxPerIP:    cfg.Attempts.InputMaxPerIP,
		InputMaxPerEmail: cfg.Attempts.InputMaxPerEmail,
	}, logger.Component("attempts"))

	var verifier ports.CaptchaVerifier
	if cfg.Captcha.Secret != "" {
		verifier = captcha.NewRecaptcha(cfg.Captcha.Secret)
	}

	var notifier ports.Notifier = telegram.Disabled{}
	if cfg.Telegram.Token != "" {
		bot, err := telegram.New(cfg.Telegram.Token, userRepo, logger.Component("telegram"))
		if err != nil {
			return err
		}
		bot.Start(ctx)
		defer bot.Stop()
		notifier = bot
	} else {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, verification codes cannot be delivered")
	}

	tokens := service.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(service.AuthDeps{
		Users:    userRepo,
		Tokens:   tokens,
		Tracker:  tracker,
		Notifier: notifier,
		Captcha:  verifier,
	}, service.AuthOptions{
		MasterEmail:     cfg.Auth.MasterEmail,
		CaptchaRequired: cfg.Captcha.Required,
	}, logger.Component("auth"))
	jobService := service.NewJobService(jobRepo, logger.Component("jobs"))

	e := api.NewRouter(api.Dependencies{
		Auth:           authService,
		Jobs:           jobService,
		Tokens:         tokens,
		Users:          userRepo,
		Tracker:        tracker,
		HealthChecks:   checks,
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxyNets(),
		Log:            logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("attempt_store", cfg.Attempts.Store).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
