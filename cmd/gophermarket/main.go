// Package main запускает HTTP-сервер сервиса gophermarket.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/gophermarket/internal/config"
	"github.com/mmeshcher/gophermarket/internal/dedup"
	"github.com/mmeshcher/gophermarket/internal/events"
	"github.com/mmeshcher/gophermarket/internal/gateway"
	"github.com/mmeshcher/gophermarket/internal/handler"
	"github.com/mmeshcher/gophermarket/internal/metrics"
	"github.com/mmeshcher/gophermarket/internal/middleware"
	"github.com/mmeshcher/gophermarket/internal/repository"
	"github.com/mmeshcher/gophermarket/internal/service"
	"github.com/mmeshcher/gophermarket/internal/settlement"
)

const (
	callbackGuardTTL = 10 * time.Minute
	eventBufferSize  = 1024
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	policy, err := settlement.NewPolicy(cfg.SellerShare)
	if err != nil {
		sugar.Fatalw("settlement policy error", "error", err.Error())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	deps := service.Deps{
		Settlement: settlement.NewEngine(policy),
		Metrics:    m,
		Logger:     logger,
	}

	if cfg.PaymentsEnabled() {
		deps.Gateway = gateway.NewVNPay(gateway.Config{
			TmnCode:    cfg.VNPayTmnCode,
			HashSecret: cfg.VNPayHashSecret,
			PayURL:     cfg.VNPayURL,
			ReturnURL:  cfg.VNPayReturnURL,
		})
	} else {
		sugar.Warn("payment gateway is not configured, withdrawals are disabled")
	}

	if cfg.RedisAddress != "" {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := dedup.NewRedisStore(pingCtx, cfg.RedisAddress)
		cancel()
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer store.Close()

		guard, err := dedup.NewGuard(store, callbackGuardTTL, "vnpay-callback")
		if err != nil {
			sugar.Fatalw("callback guard error", "error", err.Error())
		}
		deps.Guard = guard
	}

	var publisher *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, eventBufferSize, logger)
		deps.Events = publisher
	}

	svc := service.NewService(repo, deps)
	defer svc.Close()

	bootstrapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = svc.EnsureAdmin(bootstrapCtx, cfg.AdminLogin, cfg.AdminPassword)
	cancel()
	if err != nil {
		sugar.Fatalw("admin bootstrap error", "error", err.Error())
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, handler.Options{
		FrontendURL:    cfg.FrontendURL,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// События дописываются после остановки HTTP-сервера.
	pubCtx, stopPublisher := context.WithCancel(context.Background())
	defer stopPublisher()

	if publisher != nil {
		g.Go(func() error {
			sugar.Infow("starting event publisher", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
			if err := publisher.Run(pubCtx); err != nil {
				return fmt.Errorf("event publisher error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		sugar.Infow("starting gophermarket server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		stopPublisher()
		if err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
