// Package logging provides config-driven categorized logging for shadowbox on
// top of zap. Logging is controlled by debug_mode in the logging config: when
// false, every category logger is a no-op.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"shadowbox/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup, config loading
	CategoryLoader      Category = "loader"      // Load pipeline, cache
	CategoryPolicy      Category = "policy"      // Acquisition and instrumentation decisions
	CategoryIntercept   Category = "intercept"   // Dispatcher and handlers
	CategorySandbox     Category = "sandbox"     // Interpreter scopes
	CategoryEnvironment Category = "environment" // Per-version environments
)

// Categories lists every category.
var Categories = []Category{
	CategoryBoot,
	CategoryLoader,
	CategoryPolicy,
	CategoryIntercept,
	CategorySandbox,
	CategoryEnvironment,
}

var (
	base     = zap.NewNop()
	cfg      config.LoggingConfig
	loggers  = make(map[Category]*zap.Logger)
	loggerMu sync.RWMutex
)

// New builds a zap logger from c. With debug mode off it returns a no-op
// logger.
func New(c config.LoggingConfig) (*zap.Logger, error) {
	if !c.DebugMode {
		return zap.NewNop(), nil
	}

	level := zapcore.InfoLevel
	if c.Level != "" {
		l, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
		level = l
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Sampling = nil
	if c.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zcfg.OutputPaths = []string{"stderr"}
	if c.File != "" {
		zcfg.OutputPaths = []string{c.File}
	}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// Initialize installs the process-wide base logger. Category loggers created
// before the call are dropped.
func Initialize(c config.LoggingConfig) error {
	logger, err := New(c)
	if err != nil {
		return err
	}
	Install(logger, c)
	logger.Named(string(CategoryBoot)).Debug("Logging initialized",
		zap.String("level", c.Level),
		zap.String("format", c.Format),
		zap.Bool("debug_mode", c.DebugMode))
	return nil
}

// Install sets logger as the base for category loggers, filtered by c.
func Install(logger *zap.Logger, c config.LoggingConfig) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	base = logger
	cfg = c
	loggers = make(map[Category]*zap.Logger)
}

// Get returns (or creates) the logger for category. Disabled categories get a
// no-op logger.
func Get(category Category) *zap.Logger {
	loggerMu.RLock()
	if l, ok := loggers[category]; ok {
		loggerMu.RUnlock()
		return l
	}
	loggerMu.RUnlock()

	loggerMu.Lock()
	defer loggerMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}
	l := For(base, cfg, category)
	loggers[category] = l
	return l
}

// For derives the category logger from logger without touching global state.
func For(logger *zap.Logger, c config.LoggingConfig, category Category) *zap.Logger {
	if logger == nil || !c.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return logger.Named(string(category))
}

// Sync flushes the base logger.
func Sync() error {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return base.Sync()
}
