package main

// @title PittMC Whitelist API
// @version 1.0
// @description Email verification and whitelist submission for the Pitt Minecraft server.
// @BasePath /api
// @schemes http https

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "pittmc/backend/docs" // Swagger docs
	"pittmc/backend/internal/auth/jwt"
	"pittmc/backend/internal/config"
	"pittmc/backend/internal/health"
	"pittmc/backend/internal/logger"
	"pittmc/backend/internal/mailer"
	"pittmc/backend/internal/middleware"
	"pittmc/backend/internal/monitoring"
	"pittmc/backend/internal/notify/discord"
	"pittmc/backend/internal/pool"
	"pittmc/backend/internal/service"
	"pittmc/backend/internal/smtp"
	"pittmc/backend/internal/storage"
	"pittmc/backend/internal/storage/memory"
	"pittmc/backend/internal/storage/redis"
	sqlstore "pittmc/backend/internal/storage/sql"
	httptransport "pittmc/backend/internal/transport/http"
	"pittmc/backend/internal/whitelist"
)

const version = "1.0.0"

// main runs the HTTP API and, when enabled, the inbound SMTP listener.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.Must(cfg.Log)
	defer func() { _ = log.Sync() }()
	log.Info("starting pittmc backend",
		zap.String("version", version),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("institution", cfg.Verification.Domain),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	kv, closeKV := openKV(groupCtx, cfg, log)
	defer closeKV()

	archive := openArchive(cfg, log)
	if archive != nil {
		defer archive.Close()
	}

	metrics := monitoring.NewMetrics(nil)

	notifyPool := pool.NewWorkerPool(cfg.Discord.Workers, cfg.Discord.QueueSize, log.Named("pool"))
	notifyPool.Start(groupCtx)
	notifier := discord.New(kv, discord.Options{
		WebhookURL:  cfg.Discord.WebhookURL,
		MinInterval: cfg.Discord.MinInterval,
		Timeout:     cfg.Discord.Timeout,
		Pool:        notifyPool,
		Metrics:     metrics,
		Logger:      log,
	})
	if !notifier.Enabled() {
		log.Info("discord webhook not configured, progress notifications disabled")
	}

	if !cfg.Mail.Enabled && !cfg.Log.Development {
		log.Warn("mail relay not configured, verification codes cannot be sent")
	}

	tokens := jwt.NewManager(kv, cfg.Token.TTL, cfg.Token.SecretTTL)
	upstream := whitelist.NewClient(cfg.Whitelist, log)
	if !cfg.Whitelist.Configured() {
		log.Warn("whitelist API not configured, submissions will fail")
	}

	verification := service.NewVerificationService(cfg.Verification, service.VerificationDeps{
		KV:       kv,
		Tokens:   tokens,
		Mailer:   mailer.New(cfg.Mail, cfg.Log.Development, log),
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   log,
	})
	whitelistDeps := service.WhitelistDeps{
		KV:       kv,
		Tokens:   tokens,
		Upstream: upstream,
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   log,
	}
	var healthArchive health.Pinger
	if archive != nil {
		whitelistDeps.Archive = archive
		healthArchive = archive
	}
	whitelistService := service.NewWhitelistService(cfg.Whitelist.StrictBedrock, whitelistDeps)
	progress := service.NewProgressService(notifier, log)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, metrics)
	rateLimiter.StartCleanup(groupCtx)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		Verification: verification,
		Whitelist:    whitelistService,
		Progress:     progress,
		Health:       health.NewChecker(kv, healthArchive, log),
		Metrics:      metrics,
		RateLimiter:  rateLimiter,
		Logger:       log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	var closeSMTP func()
	if cfg.SMTP.Enabled {
		backend := smtp.NewBackend(verification, smtp.Options{
			InboundAddresses: []string{cfg.Verification.InboundAddress},
			Limiter:          smtp.NewConnectionLimiter(cfg.SMTP.MaxConnections, cfg.SMTP.MaxPerIP, cfg.SMTP.RatePerMinute),
			Metrics:          metrics,
			Logger:           log,
		})
		smtpServer := smtp.NewServer(cfg.SMTP, backend)
		closeSMTP = func() {
			if err := smtpServer.Close(); err != nil {
				log.Warn("SMTP server close warning", zap.Error(err))
			}
		}

		group.Go(func() error {
			log.Info("starting SMTP server",
				zap.String("address", cfg.SMTP.BindAddr),
				zap.String("domain", cfg.SMTP.Domain),
				zap.String("inbound", cfg.Verification.InboundAddress),
			)
			if err := smtpServer.ListenAndServe(); err != nil && groupCtx.Err() == nil {
				log.Error("SMTP server error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if closeSMTP != nil {
			closeSMTP()
		}
		notifyPool.Stop()

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("server exited cleanly")
}

// openKV connects to Redis when an address is configured and falls back to
// the in-process store otherwise.
func openKV(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.KV, func()) {
	if cfg.Redis.Address == "" {
		store := memory.NewStore()
		store.StartJanitor(ctx, time.Minute)
		log.Warn("redis not configured, using in-memory store (state is lost on restart)")
		return store, func() {}
	}

	client, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	return client, func() {
		if err := client.Close(); err != nil {
			log.Warn("redis close error", zap.Error(err))
		}
	}
}

// openArchive opens the SQL audit archive. It returns nil when no database is
// configured or the database is unreachable; the KV audit trail still works.
func openArchive(cfg *config.Config, log *zap.Logger) *sqlstore.Archive {
	if cfg.Database.Type == "" {
		return nil
	}
	archive, err := sqlstore.NewArchive(cfg.Database)
	if err != nil {
		log.Error("audit archive unavailable, continuing without it",
			zap.String("type", cfg.Database.Type),
			zap.Error(err),
		)
		return nil
	}
	log.Info("audit archive ready", zap.String("type", cfg.Database.Type))
	return archive
}
