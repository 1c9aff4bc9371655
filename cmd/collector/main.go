package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vectorinstitute/workspace-insights/internal/cache"
	"github.com/vectorinstitute/workspace-insights/internal/coder"
	"github.com/vectorinstitute/workspace-insights/internal/collector"
	"github.com/vectorinstitute/workspace-insights/internal/directory"
	"github.com/vectorinstitute/workspace-insights/internal/logging"
	"github.com/vectorinstitute/workspace-insights/internal/observability"
	"github.com/vectorinstitute/workspace-insights/internal/store"
)

func main() {
	observability.InitOTelProvider("workspace-insights-collector")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coderURL := os.Getenv("CODER_URL")
	if coderURL == "" {
		coderURL = "https://platform.vectorinstitute.ai"
	}
	token := os.Getenv("CODER_TOKEN")
	if token == "" {
		token = os.Getenv("CODER_SESSION_TOKEN")
	}
	if token == "" {
		logging.L.Fatal("CODER_TOKEN or CODER_SESSION_TOKEN must be set")
	}

	st, err := store.EnvOrMemory(ctx)
	if err != nil {
		logging.L.Fatal("store init", zap.Error(err))
	}
	defer st.Close(context.Background())

	var dir directory.Directory = directory.NewStoreDirectory(st)
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rc := cache.NewRedis(addr, os.Getenv("REDIS_PASSWORD"), 0, "insights")
		defer rc.Close()
		dir = directory.NewCached(dir, rc, 5*time.Minute)
	}

	col := collector.New(coder.New(coderURL, token), st, dir)
	if v := os.Getenv("INSIGHTS_EXCLUDED_TEMPLATES"); v != "" {
		col.ExcludedTemplates = strings.Split(v, ",")
	}

	run := func() {
		snap, err := col.Run(ctx, time.Now())
		if err != nil {
			logging.L.Error("collection failed", zap.Error(err))
			return
		}
		logging.L.Info("collection complete",
			zap.Time("timestamp", snap.Timestamp),
			zap.Int("workspaces", len(snap.Workspaces)))
	}

	// one-shot by default; set an interval to run as a daemon
	intervalMin, _ := strconv.Atoi(os.Getenv("INSIGHTS_COLLECT_INTERVAL_MINUTES"))
	if intervalMin <= 0 {
		run()
		return
	}

	run()
	ticker := time.NewTicker(time.Duration(intervalMin) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
