package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"drinkpoint-api/internal/cache"
	"drinkpoint-api/internal/classifier"
	"drinkpoint-api/internal/config"
	"drinkpoint-api/internal/handler"
	"drinkpoint-api/internal/metrics"
	"drinkpoint-api/internal/middleware"
	"drinkpoint-api/internal/repository"
	"drinkpoint-api/internal/router"
	"drinkpoint-api/internal/rules"
	"drinkpoint-api/internal/service"
	"drinkpoint-api/internal/storage"
	"drinkpoint-api/pkg/logger"
	"drinkpoint-api/pkg/uid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Environment, cfg.App.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("starting",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Rules.Location()
	if err != nil {
		return err
	}
	m := metrics.New()

	// Database
	store, err := repository.Open(ctx, repository.Options{
		Driver:          cfg.Database.Type,
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		Location:        loc,
	}, log)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	// Cache
	var c cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.RedisKeyPrefix,
		}, log)
		if err != nil {
			return err
		}
		c = rc
	default:
		c = cache.NewMemoryCache()
		log.Info("using in-memory cache")
	}
	defer c.Close()

	// Image storage
	var images storage.ImageStore
	switch cfg.Storage.Type {
	case "oss":
		images, err = storage.NewOSSImageStore(storage.OSSConfig{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			AccessKeySecret: cfg.Storage.AccessKeySecret,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return err
		}
		log.Info("using OSS image storage", zap.String("bucket", cfg.Storage.Bucket))
	default:
		images = storage.NewMemoryImageStore("")
		log.Info("using in-memory image storage")
	}

	// Rules
	engine := rules.NewDefaultEngine(log)
	if cfg.Rules.Path != "" {
		engine, err = rules.LoadFile(cfg.Rules.Path, log)
		if err != nil {
			return err
		}
		log.Info("rules loaded", zap.String("path", cfg.Rules.Path))
	}
	holder := rules.NewHolder(engine)
	if cfg.Rules.Path != "" && cfg.Rules.Watch {
		err := rules.Watch(ctx, cfg.Rules.Path, log, func(e *rules.Engine, err error) {
			m.IncRulesReload(err == nil)
			if err == nil {
				holder.Store(e)
			}
		})
		if err != nil {
			log.Warn("rules watch unavailable", zap.Error(err))
		}
	}

	// Classifier
	if cfg.Classifier.APIKey == "" {
		log.Warn("CLASSIFIER_API_KEY is empty, photo captures will fail")
	}
	var cls classifier.Classifier = classifier.NewOpenAIClassifier(classifier.OpenAIConfig{
		APIKey:       cfg.Classifier.APIKey,
		BaseURL:      cfg.Classifier.BaseURL,
		Model:        cfg.Classifier.Model,
		Timeout:      cfg.Classifier.Timeout,
		TargetBrands: cfg.Classifier.TargetBrands,
	}, m, log)
	if cfg.Classifier.CacheTTL > 0 {
		cls = classifier.NewCachedClassifier(cls, c, cfg.Classifier.CacheTTL, m, log)
	}

	// Services
	ids, err := uid.NewGenerator(cfg.App.NodeID)
	if err != nil {
		return err
	}
	progress := service.NewProgress(store, holder, m, log)
	captureService := service.NewCaptureService(store, cls, images, holder, progress, ids, m, log)
	tokenService := service.NewTokenService(c, cfg.Auth.LoginKey, cfg.Auth.TokenTTL, log)
	leaderboard := service.NewLeaderboardScheduler(store, c, service.LeaderboardConfig{
		RefreshInterval: cfg.Leaderboard.RefreshInterval,
		Size:            cfg.Leaderboard.Size,
	}, log)
	profileService := service.NewProfileService(store, holder, leaderboard, log)
	adminService := service.NewAdminService(store, progress, ids, loc, log)

	leaderboard.Start()
	defer leaderboard.Stop()

	if cfg.Auth.LoginKey == "" {
		log.Warn("LOGIN_KEY is empty, admin login is disabled")
	}

	// HTTP
	r := router.New(router.Config{
		Handler: handler.New(cfg.App.Version, map[string]handler.Pinger{
			"database": store,
			"cache":    c,
		}),
		CaptureHandler: handler.NewCaptureHandler(captureService, cfg.Server.MaxUploadBytes),
		ProfileHandler: handler.NewProfileHandler(profileService),
		AdminHandler:   handler.NewAdminHandler(adminService, store, c, cfg.Database.Type, cfg.Cache.Type),
		AuthHandler:    handler.NewAuthHandler(tokenService),
		UserAuth: middleware.NewUserAuth(middleware.UserAuthConfig{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.JWTIssuer,
			Audience: cfg.Auth.JWTAudience,
			Users:    profileService,
			Log:      log,
		}),
		AdminAuth:      middleware.NewAdminAuth(tokenService),
		RateLimiter:    middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustProxy:     cfg.Server.TrustProxy,
		Metrics:        m,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Address()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
