package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contact-intake/internal/antispam"
	"contact-intake/internal/auth"
	"contact-intake/internal/config"
	"contact-intake/internal/crm"
	"contact-intake/internal/emailcheck"
	"contact-intake/internal/httpapi"
	"contact-intake/internal/intake"
	"contact-intake/internal/notify"
	"contact-intake/internal/ratelimit"
	"contact-intake/internal/reporting"
	"contact-intake/internal/submissionlog"
	"contact-intake/internal/validation"
	"contact-intake/pkg/logger"
	"contact-intake/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/pflag"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment (missing file is ignored)")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	if err := run(*envFile, *migrateOnly); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(envFile string, migrateOnly bool) error {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	driver := utils.DriverPgx
	if cfg.DB.Driver == config.DBDriverSQLite {
		driver = utils.DriverSQLite
	}
	db, err := utils.OpenDatabase(rootCtx, driver, cfg.DatabaseDSN(), utils.PoolConfig{})
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	defer db.Close()

	if err := submissionlog.Migrate(db.DB, driver); err != nil {
		return err
	}
	log.Info("migrations applied", "driver", driver)
	if migrateOnly {
		return nil
	}

	store, closeStore, err := openRateLimitStore(rootCtx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	app, err := build(cfg, db, store, log)
	if err != nil {
		return err
	}
	defer app.close()

	app.rotator.Start()
	defer app.rotator.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, app, db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// The CRM call alone may take up to its own timeout.
		WriteTimeout: cfg.HubSpot.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	return nil
}

func openRateLimitStore(ctx context.Context, cfg config.Config) (ratelimit.Store, func(), error) {
	if cfg.RateLimit.Store == config.RateLimitStoreMemory {
		return ratelimit.NewMemoryStore(), func() {}, nil
	}
	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("redis init failed: %w", err)
	}
	return ratelimit.NewRedisStore(rdb, ""), func() { _ = rdb.Close() }, nil
}

// app holds every constructed component. Nothing here is a package global.
type app struct {
	tokens  *auth.Manager
	intake  intake.Handlers
	admin   httpapi.Handlers
	rotator *submissionlog.Rotator
	dns     *emailcheck.DomainChecker
}

func (a *app) close() {
	if a.dns != nil {
		a.dns.Close()
	}
}

func build(cfg config.Config, db *sqlx.DB, store ratelimit.Store, log *slog.Logger) (*app, error) {
	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth init failed: %w", err)
	}
	creds, err := auth.NewCredentials(cfg.Auth.AdminUsers)
	if err != nil {
		return nil, fmt.Errorf("credentials init failed: %w", err)
	}

	limiter := ratelimit.NewLimiter(store, cfg.RateLimit.PerHour, cfg.RateLimit.Window)
	gate := antispam.NewGate(limiter, antispam.Config{
		MinElapsed: cfg.Antispam.MinElapsed,
		MaxElapsed: cfg.Antispam.MaxElapsed,
	}, log)

	dns, err := emailcheck.NewDomainChecker(net.DefaultResolver, cfg.Email.DNSCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("dns cache init failed: %w", err)
	}
	emails := emailcheck.NewValidator(dns, cfg.Email.DNSTimeout, log)
	fields := validation.NewValidator(nil, emails, cfg.Email.DNSCheck)

	hubspot := crm.NewClient(crm.Config{
		APIToken: cfg.HubSpot.APIToken,
		BaseURL:  cfg.HubSpot.BaseURL,
		Timeout:  cfg.HubSpot.Timeout,
	}, log)
	if !hubspot.Configured() {
		log.Warn("HUBSPOT_API_TOKEN not set; submissions will be logged as failed")
	}

	logs := submissionlog.NewService(submissionlog.NewSQLRepo(db))
	rotator, err := submissionlog.NewRotator(logs, cfg.Retention.Days, cfg.Retention.Schedule, log)
	if err != nil {
		dns.Close()
		return nil, err
	}

	notifier, err := buildNotifier(cfg, log)
	if err != nil {
		dns.Close()
		return nil, err
	}

	svc := intake.NewService(intake.Deps{
		Gate:      gate,
		Validator: fields,
		CRM:       hubspot,
		Log:       logs,
		Notifier:  notifier,
		Logger:    log,
	})

	return &app{
		tokens: tokens,
		intake: intake.Handlers{Service: svc, Tokens: tokens},
		admin: httpapi.Handlers{
			Auth:          tokens,
			Credentials:   creds,
			CRM:           hubspot,
			RateLimits:    limiter,
			Logs:          logs,
			Reports:       reporting.NewService(logs),
			RetentionDays: cfg.Retention.Days,
		},
		rotator: rotator,
		dns:     dns,
	}, nil
}

func buildNotifier(cfg config.Config, log *slog.Logger) (*notify.Notifier, error) {
	tpl, err := notify.LoadTemplates(cfg.Notify.TemplatesFile)
	if err != nil {
		return nil, err
	}

	var mail notify.Sender = notify.NopSender{}
	if cfg.SMTP.Host != "" {
		mail = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		log.Warn("SMTP_HOST not set; admin e-mail notifications disabled")
	}

	opts := []notify.Option{notify.WithTemplates(tpl)}
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			// Alerts are optional; keep serving without them.
			log.Error("telegram alerts disabled", "err", err)
		} else {
			opts = append(opts, notify.WithAlert(tg))
		}
	}
	return notify.New(mail, cfg.Notify.AdminEmail, log, opts...), nil
}
