package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	defaultHistorySize = 1000
	defaultIdentifier = "camstream"
)

// Logger is a duck-typed interface satisfied by *slog.Logger.
// Use this interface instead of *slog.Logger to decouple from the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// Verbose forces debug for every module.
	Verbose bool `toml:"verbose"`
	// Identifier is the journal SYSLOG_IDENTIFIER.
	Identifier string            `toml:"identifier"`
	Modules    map[string]string `toml:"modules"`
}

var (
	mutex           sync.RWMutex
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	isInitialized   bool
	history         = NewHistory(defaultHistorySize)
	logCallback     LogCallback

	// sink is the output chain shared by every module logger. Initialize
	// swaps it, so loggers handed out earlier follow the new format.
	sink atomic.Pointer[slog.Handler]
)

func init() {
	h := outputs("text", defaultIdentifier)
	sink.Store(&h)
}

// Initialize sets up the logging system. Loggers obtained before the call
// keep working and pick up the configured levels and outputs.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	if config.Identifier == "" {
		config.Identifier = defaultIdentifier
	}
	globalConfig = config
	isInitialized = true

	h := outputs(config.Format, config.Identifier)
	sink.Store(&h)

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(levelFor(module))
	}

	slog.SetDefault(slog.New(&moduleHandler{level: levelVarFor(globalLevel())}))
}

// GetHistory returns the in-memory log history.
func GetHistory() *History {
	mutex.RLock()
	defer mutex.RUnlock()
	return history
}

// SetLogCallback registers the receiver of every new history entry; nil
// clears it.
func SetLogCallback(callback LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = callback
}

func currentCallback() LogCallback {
	mutex.RLock()
	defer mutex.RUnlock()
	return logCallback
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := levelVarFor(levelFor(module))
	logger := slog.New(&moduleHandler{level: levelVar}).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// SetModuleLevel changes the level of one module at runtime.
func SetModuleLevel(module, level string) error {
	parsed := parseLevel(level)
	if parsed == nil {
		return fmt.Errorf("unknown log level %q", level)
	}

	GetLogger(module)
	mutex.Lock()
	defer mutex.Unlock()
	if globalConfig.Modules == nil {
		globalConfig.Modules = make(map[string]string)
	}
	globalConfig.Modules[module] = level
	moduleLevelVars[module].Set(*parsed)
	return nil
}

// ModuleLevels returns the effective level of every module logger.
func ModuleLevels() map[string]string {
	mutex.RLock()
	defer mutex.RUnlock()
	levels := make(map[string]string, len(moduleLevelVars))
	for module, lv := range moduleLevelVars {
		levels[module] = levelToString(lv.Level())
	}
	return levels
}

// levelFor resolves a module's level from the current config. Callers hold mutex.
func levelFor(module string) slog.Level {
	if !isInitialized {
		return slog.LevelInfo
	}
	if globalConfig.Verbose {
		return slog.LevelDebug
	}
	if levelStr, exists := globalConfig.Modules[module]; exists {
		if parsed := parseLevel(levelStr); parsed != nil {
			return *parsed
		}
	}
	return globalLevel()
}

func globalLevel() slog.Level {
	if globalConfig.Verbose {
		return slog.LevelDebug
	}
	if parsed := parseLevel(globalConfig.Level); parsed != nil {
		return *parsed
	}
	return slog.LevelInfo
}

func levelVarFor(level slog.Level) *slog.LevelVar {
	lv := &slog.LevelVar{}
	lv.Set(level)
	return lv
}

// moduleHandler filters by its module level and forwards to the shared sink.
type moduleHandler struct {
	level slog.Leveler
	ops   []func(slog.Handler) slog.Handler
}

func (h *moduleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *moduleHandler) Handle(ctx context.Context, r slog.Record) error {
	out := *sink.Load()
	for _, op := range h.ops {
		out = op(out)
	}
	return out.Handle(ctx, r)
}

func (h *moduleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h *moduleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h *moduleHandler) with(op func(slog.Handler) slog.Handler) *moduleHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops)+1)
	copy(ops, h.ops)
	ops[len(h.ops)] = op
	return &moduleHandler{level: h.level, ops: ops}
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		l := slog.LevelDebug
		return &l
	case "info":
		l := slog.LevelInfo
		return &l
	case "warn", "warning":
		l := slog.LevelWarn
		return &l
	case "error":
		l := slog.LevelError
		return &l
	default:
		return nil
	}
}
