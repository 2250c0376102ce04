package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ragcore/internal/config"
	"ragcore/internal/httpapi"
	"ragcore/internal/observability"
	"ragcore/internal/rag/domain"
	"ragcore/internal/rag/factory"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	observability.InitLogger(cfg.LogPath, cfg.LogLevel)
	log := observability.LoggerWithTrace(context.Background())

	shutdownOTel, err := observability.InitOTel(context.Background(), cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		shutdownOTel = nil
	}
	if shutdownOTel != nil {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := factory.New(ctx, cfg)
	defer svc.Stop()

	svc.AddAlertCallback(func(a domain.PerformanceAlert) {
		log.Warn().Str("alertType", a.Type).Str("severity", string(a.Severity)).Msg(a.Message)
	})

	go svc.RunHealthMonitor(ctx)

	addr := os.Getenv("RAGSERVER_ADDR")
	if addr == "" {
		addr = ":8090"
	}
	srv := &http.Server{Addr: addr, Handler: httpapi.NewServer(svc)}

	go func() {
		log.Info().Str("addr", addr).Msg("ragserver_listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ragserver_listen_failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("ragserver_shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ragserver_shutdown_error")
	}
}
