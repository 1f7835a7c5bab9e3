// Package applog provides the structured logging wrapper used across the
// engine: a thin shell around zap.Logger with a small set of domain field
// constructors and a process-wide global accessor for call sites that have
// no natural place to thread a logger through (leaf helpers, package-level
// init code).
package applog

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig configures InitLogger. Zero value is a valid, usable config:
// info level, JSON format, stderr output.
type LogConfig struct {
	Level       string
	Format      string // "json" or "text"
	Output      string // file path, or "" for stderr
	Development bool
}

// Logger wraps zap.Logger with a cached SugaredLogger and the domain
// helper methods below.
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger builds a Logger from cfg. An invalid or missing Output falls
// back to stderr rather than failing startup.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	var encoder zapcore.Encoder
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.ToLower(cfg.Format) == "text" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
	if cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			sink = zapcore.AddSync(f)
		}
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{zap.AddCallerSkip(0)}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddCaller())
	}

	zl := zap.New(core, opts...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// With returns a child Logger with fields attached to every subsequent
// entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// WithComponent tags every entry with the component name, e.g. "engine",
// "rules", "executor".
func (l *Logger) WithComponent(component string) *Logger {
	return l.With(Component(component))
}

// WithBroker tags every entry with a broker name, e.g. "kite".
func (l *Logger) WithBroker(broker string) *Logger {
	return l.With(Broker(broker))
}

// WithSymbol tags every entry with a trading symbol.
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.With(Symbol(symbol))
}

// WithUserID tags every entry with the owning user's ID.
func (l *Logger) WithUserID(userID int64) *Logger {
	return l.With(UserID(userID))
}

// Sugar returns the cached SugaredLogger for printf-style call sites.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============================================================
// Global accessor
// ============================================================

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// InitGlobalLogger builds a Logger from cfg and installs it as the global
// logger, returning it.
func InitGlobalLogger(cfg LogConfig) *Logger {
	l := InitLogger(cfg)
	SetGlobalLogger(l)
	return l
}

// SetGlobalLogger installs l as the global logger.
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger returns the global logger, lazily initializing it with
// default settings on first use.
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L is shorthand for GetGlobalLogger, used at call sites with no logger of
// their own.
func L() *Logger {
	return GetGlobalLogger()
}

// ============================================================
// Package-level logging functions against the global logger
// ============================================================

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)   { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)   { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field)  { L().Error(msg, fields...) }

func Debugf(template string, args ...interface{}) { L().sugar.Debugf(template, args...) }
func Infof(template string, args ...interface{})  { L().sugar.Infof(template, args...) }
func Warnf(template string, args ...interface{})  { L().sugar.Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { L().sugar.Errorf(template, args...) }

// ============================================================
// Domain field constructors
// ============================================================

func Broker(name string) zap.Field       { return zap.String("broker", name) }
func Symbol(symbol string) zap.Field     { return zap.String("symbol", symbol) }
func RuleID(id string) zap.Field         { return zap.String("rule_id", id) }
func TradeID(id string) zap.Field        { return zap.String("trade_id", id) }
func Price(price float64) zap.Field      { return zap.Float64("price", price) }
func Quantity(qty int) zap.Field         { return zap.Int("quantity", qty) }
func TriggerType(kind string) zap.Field  { return zap.String("trigger_type", kind) }
func OrderID(id string) zap.Field        { return zap.String("order_id", id) }
func Latency(ms float64) zap.Field       { return zap.Float64("latency_ms", ms) }
func RequestID(id string) zap.Field      { return zap.String("request_id", id) }
func UserID(id int64) zap.Field          { return zap.Int64("user_id", id) }
func Component(component string) zap.Field { return zap.String("component", component) }

// ============================================================
// Re-exported zap field constructors, so call sites only import applog
// ============================================================

func String(key, val string) zap.Field       { return zap.String(key, val) }
func Int(key string, val int) zap.Field      { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field  { return zap.Int64(key, val) }
func Float64(key string, val float64) zap.Field { return zap.Float64(key, val) }
func Bool(key string, val bool) zap.Field    { return zap.Bool(key, val) }
func Err(err error) zap.Field                { return zap.Error(err) }
func Any(key string, val interface{}) zap.Field { return zap.Any(key, val) }

// fieldsToInterface flattens zap fields into alternating key/value pairs,
// in field order, for call sites that hand fields to a non-zap sink (e.g.
// printf-style helpers).
func fieldsToInterface(fields []zap.Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		enc := zapcore.NewMapObjectEncoder()
		f.AddTo(enc)
		for k, v := range enc.Fields {
			out = append(out, k, v)
		}
	}
	return out
}
