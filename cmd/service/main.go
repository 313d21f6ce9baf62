package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-platform/internal/alert"
	"github.com/kjstillabower/weather-platform/internal/cache"
	"github.com/kjstillabower/weather-platform/internal/config"
	httphandler "github.com/kjstillabower/weather-platform/internal/http"
	"github.com/kjstillabower/weather-platform/internal/lifecycle"
	"github.com/kjstillabower/weather-platform/internal/notify"
	"github.com/kjstillabower/weather-platform/internal/observability"
	"github.com/kjstillabower/weather-platform/internal/provider"
	"github.com/kjstillabower/weather-platform/internal/service"
	"github.com/kjstillabower/weather-platform/internal/storage"
	"github.com/kjstillabower/weather-platform/internal/sweep"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	store, err := storage.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("database close", zap.Error(err))
		}
	}()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureSchema(schemaCtx); err != nil {
		schemaCancel()
		logger.Fatal("schema", zap.Error(err))
	}
	schemaCancel()

	var cacheSvc cache.Cache
	var cachePing func() error
	var cacheCloser io.Closer
	switch cfg.CacheBackend {
	case "redis":
		rc, err := cache.NewRedisCache(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("redis cache", zap.Error(err))
		}
		cacheSvc = rc
		cachePing = func() error { return rc.Ping(context.Background()) }
		cacheCloser = rc
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, 0, 0)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		cacheSvc = mc
		cachePing = mc.Ping
		cacheCloser = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	policy := provider.RetryPolicy{
		Attempts:  cfg.RetryAttempts,
		BaseDelay: cfg.RetryBaseDelay,
		MaxDelay:  cfg.RetryMaxDelay,
	}
	weatherProvider := provider.NewOpenWeatherProvider(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.ProviderTimeout, cfg.BreakerOpenTimeout, policy)
	airProvider := provider.NewIQAirProvider(cfg.IQAirAPIKey, cfg.IQAirBaseURL, cfg.ProviderTimeout, cfg.BreakerOpenTimeout, policy)
	scraper := provider.NewWttrScraper(cfg.ScraperEnabled, cfg.ScraperBaseURL, cfg.ScraperTimeout, cfg.BreakerOpenTimeout, policy)
	if !weatherProvider.IsAvailable() {
		logger.Warn("openweather key not set; current weather and forecasts rely on scraper and storage fallbacks")
	}
	if !airProvider.IsAvailable() {
		logger.Warn("iqair key not set; air quality relies on storage fallback")
	}

	weatherService := service.NewWeatherService(weatherProvider, airProvider, scraper, cacheSvc, store)
	subscriptionService := service.NewSubscriptionService(store)

	notifier := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger)
	if !notifier.Configured() {
		logger.Warn("smtp host not set; alert notifications will be logged and dropped")
	}
	engine := alert.NewEngine(store, notifier, cfg.AlertCooldown, logger)

	var sweeper *sweep.Sweeper
	if cfg.SweepEnabled {
		sweeper = sweep.NewSweeper(store, weatherService, engine, cfg.SweepInterval, logger)
		if err := sweeper.Start(); err != nil {
			logger.Fatal("sweep scheduler", zap.Error(err))
		}
		logger.Info("subscription sweep started", zap.Duration("interval", cfg.SweepInterval))
	}

	health := httphandler.HealthDeps{
		DBPing: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(ctx)
		},
		CachePing:        cachePing,
		WeatherAvailable: weatherProvider.IsAvailable,
		AirAvailable:     airProvider.IsAvailable,
	}
	handler := httphandler.NewHandler(weatherService, subscriptionService, health, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if cacheCloser != nil {
		if err := cacheCloser.Close(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
