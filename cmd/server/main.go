package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/blog-platform/internal/config"
	"github.com/iliyamo/blog-platform/internal/database"
	"github.com/iliyamo/blog-platform/internal/handler"
	"github.com/iliyamo/blog-platform/internal/mail"
	"github.com/iliyamo/blog-platform/internal/middleware"
	"github.com/iliyamo/blog-platform/internal/queue"
	"github.com/iliyamo/blog-platform/internal/ratelimit"
	"github.com/iliyamo/blog-platform/internal/repository"
	"github.com/iliyamo/blog-platform/internal/router"
	"github.com/iliyamo/blog-platform/internal/service"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Pinger{}

	// Account store
	var store service.AccountStore
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory account store; data is lost on restart")
		store = repository.NewMemoryAccountRepo()
	default:
		db, err := database.Open(ctx, cfg.DB)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer db.Close()
		if err := database.Migrate(db, cfg.DB.Name, log); err != nil {
			log.Fatal("database migration failed", zap.Error(err))
		}
		checks["database"] = db
		store = repository.NewAccountRepo(db)
	}

	// Rate limiter
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		log.Fatal("rate limit config", zap.Error(err))
	}
	var limiter *ratelimit.Limiter
	if rlCfg.Enabled {
		var counters ratelimit.CounterStore
		var rdb *redis.Client
		if rlCfg.Backend == "redis" {
			rdb = config.NewRedisClient()
		}
		if rdb != nil {
			defer rdb.Close()
			counters = ratelimit.NewRedisCounterStore(rdb)
			checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
			log.Info("rate limiting with redis counters")
		} else {
			if rlCfg.Backend == "redis" {
				log.Warn("redis unreachable, falling back to in-process rate-limit counters")
			}
			mem := ratelimit.NewMemoryCounterStore(nil)
			go mem.RunJanitor(ctx, time.Minute)
			counters = mem
		}
		limiter = ratelimit.NewLimiter(counters, rlCfg)
		log.Info("rate limiting enabled", zap.Bool("fail_open", rlCfg.FailOpen), zap.Int("rules", len(rlCfg.Rules)))
	}

	// Audit
	audit := service.MultiAuditSink{service.NewZapAuditSink(log)}
	if cfg.Audit.AMQPURL != "" {
		audit = append(audit, queue.NewAuditPublisher(cfg.Audit.AMQPURL, cfg.Audit.Queue, log))
		if cfg.Audit.ConsumerEnabled {
			consumer := queue.NewAuditConsumer(cfg.Audit.AMQPURL, cfg.Audit.Queue, cfg.Audit.LogPath, log)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("audit consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	// Services
	mailer := mail.New(cfg.Mail, log)
	otp := service.NewOTPService(store, mailer, cfg.OTPTTL, nil, log)
	accounts := service.NewAccountService(store, otp, cfg.BcryptCost, nil, log)
	creds, err := service.NewCredentialVerifier(store, cfg.BcryptCost, cfg.AllowPendingLogin, nil, log)
	if err != nil {
		log.Fatal("credential verifier", zap.Error(err))
	}
	tokens := service.NewTokenService(store, service.TokenConfig{
		Secret:       cfg.JWTSecret,
		Issuer:       cfg.JWTIssuer,
		AccessTTL:    cfg.AccessTTL(),
		RefreshTTL:   cfg.RefreshTTL(),
		AllowPending: cfg.AllowPendingLogin,
	}, nil, log)
	guard := service.NewGuard(tokens)
	status := service.NewStatusMachine(store, audit, nil, log)
	if cfg.AllowPendingLogin {
		log.Warn("pending accounts may log in (ALLOW_PENDING_LOGIN=true)")
	}

	// HTTP
	e := echo.New()
	e.HideBanner = true
	ipExtractor, err := middleware.ClientIP(cfg.TrustedProxies)
	if err != nil {
		log.Fatal("trusted proxies", zap.Error(err))
	}
	e.IPExtractor = ipExtractor
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, &handler.HealthHandler{Checks: checks})
	router.RegisterAuth(e, &handler.AuthHandler{
		Accounts:     accounts,
		Credentials:  creds,
		Tokens:       tokens,
		CookieSecure: cfg.CookieSecure,
		RefreshTTL:   cfg.RefreshTTL(),
		Timeout:      cfg.RequestTimeout,
	}, guard, limiter, log)
	router.RegisterAdmin(e, &handler.AdminHandler{
		Accounts: accounts,
		Status:   status,
		Timeout:  cfg.RequestTimeout,
	}, guard)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if env == "dev" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return log
}
