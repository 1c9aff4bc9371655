package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// L is the shared structured logger used across the project.
	L    *zap.Logger
	once sync.Once
)

func init() {
	Init()
}

// Init builds the global logger if it has not been constructed yet.
// It uses zap's production configuration for consistent structured output;
// INSIGHTS_LOG_LEVEL overrides the default info level.
func Init() {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Sampling = nil
		if lvl, err := zapcore.ParseLevel(os.Getenv("INSIGHTS_LOG_LEVEL")); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		logger, err := cfg.Build()
		if err != nil {
			panic(err)
		}
		L = logger
	})
}
