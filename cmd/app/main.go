package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"telegram-video-courier/internal/application"
	"telegram-video-courier/internal/config"
	"telegram-video-courier/internal/domain/ports/repository"
	"telegram-video-courier/internal/infra/adapters/extractor"
	tele "telegram-video-courier/internal/infra/adapters/telegram"
	"telegram-video-courier/internal/infra/api"
	pg "telegram-video-courier/internal/infra/db/postgres"
	"telegram-video-courier/internal/infra/logging"
	"telegram-video-courier/internal/infra/metrics"
	red "telegram-video-courier/internal/infra/redis"
	"telegram-video-courier/internal/infra/web"
	"telegram-video-courier/internal/infra/worker"
	"telegram-video-courier/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed checks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Optional Redis (rate limiting) ----
	var limiter *red.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Info().Msg("redis url not set, rate limiting disabled")
	}

	// ---- Optional Postgres (run history) ----
	var runs repository.RunRepository
	if cfg.Database.URL != "" {
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect")
		}
		defer pool.Close()
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema")
		}
		runs = pg.NewRunRepo(pool)
	} else {
		logger.Info().Msg("database url not set, run history disabled")
	}

	// ---- Pipeline ----
	media := extractor.NewYtDlpExtractor(logger)
	direct := extractor.NewDirectHTTPFetcher()

	bot, err := tele.NewCourierBot(&cfg.Bot, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram connect")
	}

	pipeline := usecase.NewRetrievalUseCase(media, direct, bot, runs, cfg, logger)

	pool := worker.NewPool(cfg.Bot.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()

	facade := application.NewFacade(pipeline, pool, bot, limiter, logger)
	bot.SetFacade(facade)

	// ---- Ingestion ----
	switch strings.ToLower(cfg.Bot.Mode) {
	case "polling":
		go func() {
			if err := bot.StartPolling(ctx); err != nil {
				logger.Error().Err(err).Msg("polling stopped")
			}
		}()
		defer bot.StopPolling()
	case "webhook":
		logger.Info().Str("path", cfg.Webhook.Path).Msg("webhook ingestion, updates arrive over HTTP")
	}

	// ---- HTTP surface ----
	apiServer := api.NewServer(bot, facade, cfg.Webhook.Path, cfg.Webhook.Secret, logger)
	router := apiServer.Router()
	if cfg.Admin.Secret != "" {
		auth := web.NewAuthManager(cfg.Admin.Secret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
		web.NewServer(runs, auth, cfg.Admin.Secret, logger).RegisterRoutes(router)
	}

	server := api.NewHTTPServer(fmt.Sprintf(":%d", cfg.HTTP.Port), router)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	cancel()
}
