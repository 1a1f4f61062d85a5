// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/ocms-forms/internal/cache"
	"github.com/olegiv/ocms-forms/internal/config"
	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/forms"
	"github.com/olegiv/ocms-forms/internal/handler"
	"github.com/olegiv/ocms-forms/internal/hook"
	"github.com/olegiv/ocms-forms/internal/logging"
	"github.com/olegiv/ocms-forms/internal/metrics"
	"github.com/olegiv/ocms-forms/internal/middleware"
	"github.com/olegiv/ocms-forms/internal/render"
	"github.com/olegiv/ocms-forms/internal/rules"
	"github.com/olegiv/ocms-forms/internal/session"
	"github.com/olegiv/ocms-forms/internal/store"
	"github.com/olegiv/ocms-forms/internal/version"
	"github.com/olegiv/ocms-forms/web"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "formsd - public form pages and submission processing\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_SESSION_SECRET         Session and CSRF key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_DB_PATH                SQLite database path (default: ./data/forms.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_SERVER_PORT            Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_ENV                    Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_REDIS_URL              Redis URL for the form cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_SMTP_ADDR              SMTP relay host:port (optional, emails are logged otherwise)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_FORMS_EXTRA_FIELDS     YAML file with extension field templates (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		info := version.Get()
		_, _ = fmt.Printf("formsd %s (built: %s)\n", info, info.BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Mirror WARN and ERROR logs into the event log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	registry, err := fields.NewRegistry(cfg.Forms, fields.NewCatalog())
	if err != nil {
		return fmt.Errorf("loading field types: %w", err)
	}
	slog.Info("field registry ready", "types", len(registry.IDs()), "templates", len(registry.Templates()))

	formStore := store.NewFormStore(db, cfg.Forms)
	if cfg.DoSeed {
		if err := store.Seed(context.Background(), formStore, registry); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	cacheTTL := time.Duration(cfg.CacheTTL) * time.Second
	formCache := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cacheTTL,
		MaxSize:    cfg.CacheMaxSize,
	})
	defer func() { _ = formCache.Close() }()
	var cachePinger handler.Pinger
	if rc, ok := formCache.(*cache.RedisCache); ok {
		cachePinger = rc
	}

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	if sp, ok := formCache.(cache.StatsProvider); ok {
		if err := m.RegisterCache(cache.Backend(formCache), func() metrics.CacheStats {
			st := sp.Stats()
			return metrics.CacheStats{Hits: st.Hits, Misses: st.Misses, Items: st.Items}
		}); err != nil {
			return fmt.Errorf("registering cache metrics: %w", err)
		}
	}

	hooks := hook.NewRegistry(logger)
	hooks.RegisterFunc(hook.SubmissionValid, "log_entry", "core", func(_ context.Context, payload any) error {
		if ev, ok := payload.(*forms.ValidEvent); ok {
			slog.Debug("form submission accepted", "form_slug", ev.Form.Slug, "entry_id", ev.Entry.ID)
		}
		return nil
	})
	slog.Info("submission hooks registered",
		"valid", hooks.HandlerCount(hook.SubmissionValid),
		"invalid", hooks.HandlerCount(hook.SubmissionInvalid))

	var mailer forms.Mailer = forms.LogMailer{Logger: logger}
	if cfg.UseSMTP() {
		smtpMailer, err := forms.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword)
		if err != nil {
			return fmt.Errorf("configuring smtp: %w", err)
		}
		mailer = smtpMailer
		slog.Info("sending form emails via smtp", "addr", cfg.SMTPAddr)
	}

	ruleRegistry := rules.NewRegistry(cfg.Forms.RulesPath)
	if err := ruleRegistry.Validate(); err != nil {
		return fmt.Errorf("validating form rules: %w", err)
	}

	cachedForms := cache.NewFormStore(formStore, formCache, cfg.Forms, cacheTTL)
	if err := cachedForms.InvalidateAll(context.Background()); err != nil {
		slog.Warn("clearing cached form definitions failed", "error", err, "category", "cache")
	}

	svc := forms.NewService(forms.Options{
		Store:       cachedForms,
		Registry:    registry,
		Mailer:      mailer,
		Hooks:       hooks,
		Rules:       ruleRegistry,
		Metrics:     m,
		Settings:    cfg.Forms,
		DefaultFrom: cfg.DefaultFromEmail,
		Logger:      logger,
	})

	sm := session.New(db, cfg.IsDevelopment())

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	renderer, err := render.New(render.Config{TemplatesFS: templatesFS, Pages: "forms"})
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	formsHandler := handler.NewFormsHandler(svc, renderer, cfg.LoginURL, logger)
	healthHandler := handler.NewHealthHandler(db, cachePinger, cfg.Forms.UploadRoot)
	submitLimiter := middleware.NewSubmitRateLimiter(cfg.SubmitRate, cfg.SubmitBurst)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if cfg.IsDevelopment() {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(sm.LoadAndSave)
	r.Use(middleware.LoadIdentity(sm, store.New(db)))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Handle("/metrics", m.Handler())

	r.Route("/forms/{slug}", func(r chi.Router) {
		r.Use(middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment())))
		r.Use(submitLimiter.Middleware())
		r.Get("/", formsHandler.Detail)
		r.Post("/", formsHandler.Submit)
		r.Get("/sent/", formsHandler.Sent)
	})

	staticFS, err := fs.Sub(web.Static, "static/dist")
	if err != nil {
		return fmt.Errorf("getting static fs: %w", err)
	}
	r.Handle("/static/dist/*", middleware.Static("/static/dist/", staticFS, 31536000))

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second, // uploads and slow clients
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", version.Get().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
