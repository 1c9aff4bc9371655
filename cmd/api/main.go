package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vectorinstitute/workspace-insights/internal/cache"
	"github.com/vectorinstitute/workspace-insights/internal/httpapi"
	"github.com/vectorinstitute/workspace-insights/internal/logging"
	"github.com/vectorinstitute/workspace-insights/internal/observability"
	"github.com/vectorinstitute/workspace-insights/internal/store"
)

func main() {
	observability.InitOTelProvider("workspace-insights-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.EnvOrMemory(ctx)
	if err != nil {
		logging.L.Fatal("store init", zap.Error(err))
	}
	defer st.Close(context.Background())

	var c cache.Cache = cache.NewMemory()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rc := cache.NewRedis(addr, os.Getenv("REDIS_PASSWORD"), 0, "insights")
		defer rc.Close()
		c = rc
	}

	addr := os.Getenv("INSIGHTS_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := httpapi.NewServer(st, c)
	s := &http.Server{Addr: addr, Handler: srv.Router()}
	logging.L.Info("workspace insights API listening", zap.String("addr", s.Addr))
	if err := httpapi.StartHTTP(ctx, s); err != nil && err != http.ErrServerClosed && err != context.Canceled {
		logging.L.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}
