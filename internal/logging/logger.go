// Package logging provides categorized logging for the dynsql pipeline.
// Each subsystem logs under its own named category; output goes to stderr
// and, when configured, to a shared log file. Built on zap.
package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // startup, config loading
	CategoryConfig     Category = "config"     // configuration resolution
	CategoryAPI        Category = "api"        // LLM API calls
	CategoryExec       Category = "exec"       // SQL execution against databases
	CategoryCorrection Category = "correction" // self-correction loop
	CategoryRetrieval  Category = "retrieval"  // schema-linking retrieval
	CategoryEmbedding  Category = "embedding"  // embedding engine
	CategoryBatch      Category = "batch"      // JSONL batch driver
)

// Options controls logger construction.
type Options struct {
	Level string // debug, info, warn, error
	File  string // optional log file path; empty = stderr only
}

var (
	mu      sync.RWMutex
	root    *zap.SugaredLogger
	byCat   = make(map[Category]*zap.SugaredLogger)
	closeFn func()
)

// Initialize builds the process-wide logger. Safe to call once at startup;
// calling again replaces the previous logger.
func Initialize(opts Options) error {
	level := zapcore.InfoLevel
	switch opts.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info", "":
		level = zapcore.InfoLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		return fmt.Errorf("unknown log level: %s", opts.Level)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEnc := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level),
	}

	var fileClose func()
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		jsonEnc := zapcore.NewJSONEncoder(encCfg)
		cores = append(cores, zapcore.NewCore(jsonEnc, zapcore.Lock(f), level))
		fileClose = func() { f.Close() }
	}

	logger := zap.New(zapcore.NewTee(cores...))

	mu.Lock()
	defer mu.Unlock()
	root = logger.Sugar()
	byCat = make(map[Category]*zap.SugaredLogger)
	closeFn = fileClose
	return nil
}

// Get returns the logger for a category, creating it on first use.
// Before Initialize it returns a no-op logger so early callers are safe.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := byCat[category]; ok {
		mu.RUnlock()
		return l
	}
	r := root
	mu.RUnlock()

	if r == nil {
		return zap.NewNop().Sugar()
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := byCat[category]; ok {
		return l
	}
	l := r.Named(string(category))
	byCat[category] = l
	return l
}

// Sync flushes buffered log entries and closes the log file, if any.
// Call at shutdown.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if root != nil {
		_ = root.Sync()
	}
	if closeFn != nil {
		closeFn()
		closeFn = nil
	}
}

// Convenience functions for the hot categories.

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Infof(format, args...)
}

// API logs to the api category.
func API(format string, args ...interface{}) {
	Get(CategoryAPI).Infof(format, args...)
}

// APIDebug logs debug to the api category.
func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debugf(format, args...)
}

// Exec logs to the exec category.
func Exec(format string, args ...interface{}) {
	Get(CategoryExec).Infof(format, args...)
}

// ExecDebug logs debug to the exec category.
func ExecDebug(format string, args ...interface{}) {
	Get(CategoryExec).Debugf(format, args...)
}

// Correction logs to the correction category.
func Correction(format string, args ...interface{}) {
	Get(CategoryCorrection).Infof(format, args...)
}

// CorrectionDebug logs debug to the correction category.
func CorrectionDebug(format string, args ...interface{}) {
	Get(CategoryCorrection).Debugf(format, args...)
}

// Retrieval logs to the retrieval category.
func Retrieval(format string, args ...interface{}) {
	Get(CategoryRetrieval).Infof(format, args...)
}

// Embedding logs to the embedding category.
func Embedding(format string, args ...interface{}) {
	Get(CategoryEmbedding).Infof(format, args...)
}

// EmbeddingDebug logs debug to the embedding category.
func EmbeddingDebug(format string, args ...interface{}) {
	Get(CategoryEmbedding).Debugf(format, args...)
}

// Batch logs to the batch category.
func Batch(format string, args ...interface{}) {
	Get(CategoryBatch).Infof(format, args...)
}

// Timer measures an operation's duration and logs it on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if the duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warnf("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
