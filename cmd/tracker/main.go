package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aluiziolira/go-price-tracker/api"
	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/fetcher"
	"github.com/aluiziolira/go-price-tracker/metrics"
	"github.com/aluiziolira/go-price-tracker/notify"
	"github.com/aluiziolira/go-price-tracker/reconciler"
	"github.com/aluiziolira/go-price-tracker/registry"
	"github.com/aluiziolira/go-price-tracker/scheduler"
	"github.com/aluiziolira/go-price-tracker/scraper"
	"github.com/aluiziolira/go-price-tracker/store"
)

func main() {
	_ = godotenv.Load()

	defaultCfg := config.DefaultConfig()
	dsnDefault := defaultCfg.DatabaseDSN
	if value, ok := config.EnvString("TRACKER_DB_DSN"); ok {
		dsnDefault = value
	}
	addrDefault := defaultCfg.APIAddr
	if value, ok := config.EnvString("TRACKER_ADDR"); ok {
		addrDefault = value
	}
	cronDefault := defaultCfg.CronSchedule
	if value, ok := config.EnvString("TRACKER_CRON"); ok {
		cronDefault = value
	}
	registryDefault := defaultCfg.RegistryFile
	if value, ok := config.EnvString("TRACKER_REGISTRY_FILE"); ok {
		registryDefault = value
	}
	retriesDefault := defaultCfg.FetchRetries
	if value, ok, err := config.EnvInt("TRACKER_RETRIES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid TRACKER_RETRIES: %v\n", err)
		os.Exit(1)
	} else if ok {
		retriesDefault = value
	}
	delayDefault := defaultCfg.RequestDelay
	if value, ok, err := config.EnvDuration("TRACKER_DELAY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid TRACKER_DELAY: %v\n", err)
		os.Exit(1)
	} else if ok {
		delayDefault = value
	}
	autostartDefault := defaultCfg.SchedulerAutostart
	if value, ok, err := config.EnvBool("TRACKER_AUTOSTART"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid TRACKER_AUTOSTART: %v\n", err)
		os.Exit(1)
	} else if ok {
		autostartDefault = value
	}

	dsn := flag.String("db", dsnDefault, "Postgres DSN")
	addr := flag.String("addr", addrDefault, "API listen address")
	cronExpr := flag.String("cron", cronDefault, "Reconciliation cron schedule (empty means every 6 hours)")
	registryFile := flag.String("registry", registryDefault, "Site selector registry file (JSON)")
	retries := flag.Int("max-retries", retriesDefault, "Fetch attempts per URL")
	delay := flag.Duration("delay", delayDefault, "Minimum delay between outbound requests")
	respectRobots := flag.Bool("respect-robots", defaultCfg.RespectRobotsTxt, "Respect robots.txt directives")
	autostart := flag.Bool("autostart", autostartDefault, "Start the reconcile scheduler on boot")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.DatabaseDSN = *dsn
	cfg.APIAddr = *addr
	cfg.CronSchedule = *cronExpr
	cfg.RegistryFile = *registryFile
	cfg.FetchRetries = *retries
	cfg.RequestDelay = *delay
	cfg.RespectRobotsTxt = *respectRobots
	cfg.SchedulerAutostart = *autostart
	cfg.Verbose = *verbose

	// Credentials and SMTP settings come from the environment only.
	if value, ok := config.EnvString("TRACKER_ADMIN_USER"); ok {
		cfg.AdminUser = value
	}
	if value, ok := config.EnvString("TRACKER_ADMIN_PASSWORD"); ok {
		cfg.AdminPassword = value
	}
	if value, ok := config.EnvString("TRACKER_JWT_SECRET"); ok {
		cfg.JWTSecret = value
	}
	if value, ok := config.EnvString("SMTP_HOST"); ok {
		cfg.SMTPHost = value
	}
	if value, ok := config.EnvString("SMTP_PORT"); ok {
		cfg.SMTPPort = value
	}
	if value, ok := config.EnvString("SMTP_USER"); ok {
		cfg.SMTPUser = value
	}
	if value, ok := config.EnvString("SMTP_PASS"); ok {
		cfg.SMTPPassword = value
	}
	if value, ok := config.EnvString("TRACKER_NOTIFY_EMAIL"); ok {
		cfg.NotifyEmail = value
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting price tracker",
		slog.String("addr", cfg.APIAddr),
		slog.Bool("scheduler_autostart", cfg.SchedulerAutostart),
	)

	db, err := store.Connect(cfg.DatabaseDSN)
	if err != nil {
		slog.Error("connecting to database", slog.Any("error", err))
		os.Exit(1)
	}

	reg := registry.New()
	if cfg.RegistryFile != "" {
		if err := reg.LoadFile(cfg.RegistryFile); err != nil {
			slog.Error("loading site registry", slog.String("file", cfg.RegistryFile), slog.Any("error", err))
			os.Exit(1)
		}
	}

	m := metrics.New()
	f := fetcher.New(cfg, reg, m)
	sc := scraper.New(cfg, f, reg, m)
	st := store.NewGormProductStore(db)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.SMTPHost != "" {
		smtpNotifier, err := notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.NotifyEmail)
		if err != nil {
			slog.Error("configuring smtp notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = smtpNotifier
	}

	engine := reconciler.New(st, sc, notifier, m)
	sched := scheduler.New(engine)

	srv, err := api.New(cfg, st, sc, sched, reg, m)
	if err != nil {
		slog.Error("initialising http server", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.SchedulerAutostart {
		if err := sched.Start(cfg.CronSchedule); err != nil {
			slog.Error("starting scheduler", slog.Any("error", err))
			os.Exit(1)
		}
	}

	httpServer := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.Any("error", err))
			stop()
		}
	}()
	slog.Info("api listening", slog.String("addr", cfg.APIAddr))

	<-ctx.Done()
	slog.Info("shutdown signal received")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", slog.Any("error", err))
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("close database", slog.Any("error", err))
		}
	}

	slog.Info("stopped")
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
