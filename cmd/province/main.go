// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/olegiv/province-cms/internal/audit"
	"github.com/olegiv/province-cms/internal/cache"
	"github.com/olegiv/province-cms/internal/config"
	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/geoip"
	"github.com/olegiv/province-cms/internal/handler"
	"github.com/olegiv/province-cms/internal/logging"
	"github.com/olegiv/province-cms/internal/middleware"
	"github.com/olegiv/province-cms/internal/ratelimit"
	"github.com/olegiv/province-cms/internal/scheduler"
	"github.com/olegiv/province-cms/internal/service"
	"github.com/olegiv/province-cms/internal/session"
	"github.com/olegiv/province-cms/internal/store"
	"github.com/olegiv/province-cms/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   string
	appGitCommit string
	appBuildTime string
)

func buildInfo() version.Info {
	return version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
}

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Province CMS API server\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PROVINCE_SESSION_SECRET  Session and fingerprint key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PROVINCE_DB_DRIVER       sqlite|mysql (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PROVINCE_DB_PATH         SQLite database path (default: ./data/province.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PROVINCE_SERVER_PORT     Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PROVINCE_ENV             development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PROVINCE_REDIS_URL       Shared sessions, counters and cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PROVINCE_SPA_DIR         Built frontend to serve (optional)\n")
	}
	flag.Parse()

	if *showVersion {
		_, _ = fmt.Printf("province %s\n", buildInfo())
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.IsDevelopment())
	slog.SetDefault(logger)

	ctx := context.Background()

	db, dialect, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations", "driver", cfg.DBDriver)
	if err := store.Migrate(db, dialect); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	queries := store.New(db, dialect)
	admin := store.SeedAdmin{Username: cfg.AdminUsername, Password: cfg.AdminPassword, Email: cfg.AdminEmail}
	if err := store.Seed(ctx, queries, admin, service.SettingDefaults()); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}
	slog.Info("database ready")

	var rdb *redis.Client
	if cfg.UseRedis() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		slog.Info("shared state in redis", "addr", opts.Addr)
	}

	sm := session.New(session.NewStore(db, dialect, rdb), cfg.IsDevelopment(), cfg.IdleTimeout)
	sessions := session.NewManager(sm, cfg.IdleTimeout, nil)

	settingsCache := cache.New(rdb, cfg.CachePrefix, time.Duration(cfg.CacheTTL)*time.Second)
	defer func() { _ = settingsCache.Close() }()

	var (
		loginStore  ratelimit.Store
		memoryStore *ratelimit.MemoryStore
	)
	if rdb != nil {
		loginStore = ratelimit.NewRedisStore(rdb, cfg.CachePrefix+"login:")
	} else {
		memoryStore = ratelimit.NewMemoryStore(nil)
		loginStore = memoryStore
	}
	loginLimiter := ratelimit.New(loginStore, ratelimit.Config{Secret: []byte(cfg.SessionSecret)})

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		slog.Warn("geoip database unavailable; countries will not be recorded", "path", cfg.GeoIPDBPath, "error", err)
	}
	defer func() { _ = geo.Close() }()

	if err := os.MkdirAll(cfg.UploadsDir, 0o750); err != nil {
		return fmt.Errorf("creating uploads directory: %w", err)
	}

	responder := endpoint.Responder{Development: cfg.IsDevelopment()}
	auditService := audit.NewService(queries, geo, nil)
	resources := service.NewResourceService(db, dialect, nil)

	h := handler.New(handler.Deps{
		DB:        db,
		Sessions:  sessions,
		Auth:      service.NewAuthService(queries, cfg.UnknownUserDelay, nil),
		Users:     service.NewUserService(db, dialect, nil),
		Resources: resources,
		Settings:  service.NewSettingsService(db, dialect, settingsCache, nil),
		Uploads:   service.NewUploadService(cfg.UploadsDir, cfg.MaxUploadBytes(), nil),
		Audit:     auditService,
		Limiter:   loginLimiter,
		Responder: responder,
		Cache:     settingsCache,
		Version:   buildInfo(),
	})

	var apiLimiter *middleware.GlobalRateLimiter
	if cfg.APIRateLimit > 0 {
		apiLimiter = middleware.NewGlobalRateLimiter(cfg.APIRateLimit, cfg.APIRateBurst, responder)
	}

	router := h.Router(handler.RouterConfig{
		Development: cfg.IsDevelopment(),
		AccessLog:   true,
		CORSOrigins: cfg.CORSOrigins,
		CSRFKey:     []byte(cfg.SessionSecret),
		APILimiter:  apiLimiter,
		UploadsDir:  cfg.UploadsDir,
		SPADir:      cfg.SPADir,

		SiteURL:          cfg.SiteURL,
		DisallowCrawlers: cfg.DisallowCrawlers,
	})

	sched := scheduler.New(logger)
	maintenance := scheduler.Maintenance{
		Audit:            auditService,
		AuditRetention:   days(cfg.AuditRetentionDays),
		Queries:          queries,
		Resources:        resources,
		DeletedRetention: days(cfg.DeletedRetentionDays),
		LoginStore:       memoryStore,
		APILimiter:       apiLimiter,
		GeoIP:            geo,
	}
	if err := sched.Register(maintenance.Jobs()); err != nil {
		return fmt.Errorf("registering scheduled jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Longer to allow for large uploads and slow connections
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", buildInfo().Label())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, store.Dialect, error) {
	pool := store.DefaultDBConfig()
	pool.MaxOpenConns = cfg.DBMaxOpen
	pool.MaxIdleConns = cfg.DBMaxIdle

	if cfg.DBDriver == config.DriverMySQL {
		slog.Info("connecting to mysql", "host", cfg.DBHost, "database", cfg.DBName)
		db, err := store.NewMySQL(ctx, cfg.MySQLDSN(), pool, cfg.DBRetries)
		if err != nil {
			return nil, "", fmt.Errorf("connecting to mysql: %w", err)
		}
		return db, store.DialectMySQL, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
		return nil, "", fmt.Errorf("creating data directory: %w", err)
	}
	slog.Info("opening sqlite database", "path", cfg.DBPath)
	db, err := store.NewDBWithConfig(cfg.DBPath, pool)
	if err != nil {
		return nil, "", fmt.Errorf("initializing database: %w", err)
	}
	return db, store.DialectSQLite, nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
