package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prizeworks/payoutd/internal/api"
	"github.com/prizeworks/payoutd/internal/config"
	"github.com/prizeworks/payoutd/internal/ledger"
	"github.com/prizeworks/payoutd/internal/notify"
	"github.com/prizeworks/payoutd/internal/oracle"
	"github.com/prizeworks/payoutd/internal/payout"
	"github.com/prizeworks/payoutd/internal/scheduler"
	"github.com/prizeworks/payoutd/internal/settle"
	"github.com/prizeworks/payoutd/internal/store"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}
	st := store.New(rdb)

	// ── Ledger client (funding key custody) ───────────────────────────────────
	chain, err := ledger.NewClient(cfg)
	if err != nil {
		log.Fatal("ledger client init failed", zap.Error(err))
	}
	log.Info("funding wallet loaded", zap.String("address", chain.WalletAddress()))

	// ── Settlement engine ─────────────────────────────────────────────────────
	executor := payout.NewExecutor(chain, st, log)
	resolver := payout.NewResolver(st)
	selector := payout.NewSelector(nil)
	notifier := notify.NewWebhook(cfg.Notify.WebhookURL)
	orch := settle.NewOrchestrator(st, selector, resolver, executor, notifier, log)

	prices := oracle.NewClient(cfg.Oracle.URL)
	jobs := settle.NewOnDemand(st, resolver, executor, prices, log)

	// ── Due-contest poller ────────────────────────────────────────────────────
	interval := time.Duration(cfg.Scheduler.IntervalSec) * time.Second
	go scheduler.Run(ctx, interval, st, orch, log)

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	api.NewHandler(st, orch, jobs, log).Register(r.Group("/api"))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
