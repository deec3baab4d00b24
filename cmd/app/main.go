// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hookstudio/internal/catalog"
	"hookstudio/internal/config"
	"hookstudio/internal/infra/api"
	"hookstudio/internal/infra/api/apiv1"
	pg "hookstudio/internal/infra/db/postgres"
	"hookstudio/internal/infra/logging"
	"hookstudio/internal/infra/metrics"
	red "hookstudio/internal/infra/redis"
	"hookstudio/internal/infra/tokens"
	"hookstudio/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted codes)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	redeemThrottle := red.NewRedeemThrottle(redisClient, cfg.Rewards.RedeemLimit, cfg.Rewards.RedeemWindow)
	locker := red.NewLocker(redisClient)

	// ---- Metrics ----
	metrics.MustRegister()
	if err := metrics.RegisterDBPool(prometheus.DefaultRegisterer, pg.PoolStat(pool)); err != nil {
		logger.Warn().Err(err).Msg("db pool metrics not registered")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	accountRepo := pg.NewAccountRepoCacheDecorator(pg.NewAccountRepo(pool), redisClient, cfg.Redis.TTL, logger)
	streakRepo := pg.NewStreakRepo(pool)
	achievementRepo := pg.NewAchievementRepo(pool)
	codeRepo := pg.NewRedemptionCodeRepo(pool)
	counter := pg.NewContentCounter(pool)

	cat, err := catalog.Load(cfg.Rewards.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("achievement catalog")
	}
	logger.Info().Int("achievements", cat.Len()).Msg("catalog loaded")

	// ---- Use cases ----
	ledgerUC := usecase.NewLedgerUseCase(accountRepo, tm, cfg.Limits, logger)
	streakUC := usecase.NewStreakUseCase(streakRepo, tm, logger)
	achievementUC := usecase.NewAchievementUseCase(cat, achievementRepo, accountRepo, streakRepo, counter, logger)
	redemptionUC := usecase.NewRedemptionUseCase(codeRepo, ledgerUC, tm, locker, cfg.Rewards.LockTTL, logger, cfg.Runtime.Dev)
	activityUC := usecase.NewActivityUseCase(ledgerUC, streakUC, achievementUC, tokens.NewCounter("", logger), logger)

	// ---- HTTP ----
	srv := apiv1.NewServer(ledgerUC, streakUC, achievementUC, redemptionUC, activityUC, apiv1.Options{
		Verifier:    api.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		InternalKey: cfg.Auth.InternalAPIKey,
		Limiter:     redeemThrottle,
	}, logger)

	r := chi.NewRouter()
	r.Use(api.TraceID(), api.Recover(logger), api.RequestLog(logger), api.Timeout(cfg.HTTP.RequestTimeout))
	apiv1.RegisterAPIV1(r, srv)
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
