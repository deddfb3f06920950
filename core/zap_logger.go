package core

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zapcore"
)

// ZapLogger backs Logger with go.uber.org/zap's structured core, selected
// via LoggingConfig.Backend == "zap". It implements ComponentAwareLogger
// so each package can tag its own log lines without constructing a new
// zap.Logger per component.
type ZapLogger struct {
	base      *zap.Logger
	component string
}

// NewZapLogger builds a ZapLogger from LoggingConfig and DevelopmentConfig,
// choosing zap's production JSON encoder or its console encoder to match
// LoggingConfig.Format, and the debug level when either development mode
// or an explicit "debug" level asks for it.
func NewZapLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) (Logger, error) {
	level := zapcore.InfoLevel
	if dev.DebugLogging || strings.EqualFold(logging.Level, "debug") {
		level = zapcore.DebugLevel
	} else if err := level.Set(strings.ToLower(logging.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	var encoder zapcore.Encoder
	if logging.Format == "text" || dev.PrettyLogs {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stdout)
	if logging.Output == "stderr" {
		sink = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(encoder, sink, level)
	base := zap.New(core).With(zap.String("service", serviceName))

	return &ZapLogger{base: base, component: "forge"}, nil
}

func (z *ZapLogger) fields(extra map[string]interface{}) []zap.Field {
	fs := make([]zap.Field, 0, len(extra)+1)
	fs = append(fs, zap.String("component", z.component))
	for k, v := range extra {
		fs = append(fs, zap.Any(k, v))
	}
	return fs
}

func (z *ZapLogger) Info(msg string, fields map[string]interface{})  { z.base.Info(msg, z.fields(fields)...) }
func (z *ZapLogger) Error(msg string, fields map[string]interface{}) { z.base.Error(msg, z.fields(fields)...) }
func (z *ZapLogger) Warn(msg string, fields map[string]interface{})  { z.base.Warn(msg, z.fields(fields)...) }
func (z *ZapLogger) Debug(msg string, fields map[string]interface{}) { z.base.Debug(msg, z.fields(fields)...) }

func (z *ZapLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	z.base.Info(msg, z.contextFields(ctx, fields)...)
}

func (z *ZapLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	z.base.Error(msg, z.contextFields(ctx, fields)...)
}

func (z *ZapLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	z.base.Warn(msg, z.contextFields(ctx, fields)...)
}

func (z *ZapLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	z.base.Debug(msg, z.contextFields(ctx, fields)...)
}

func (z *ZapLogger) contextFields(ctx context.Context, extra map[string]interface{}) []zap.Field {
	fs := z.fields(extra)
	for k, v := range getContextBaggage(ctx) {
		fs = append(fs, zap.String("trace."+k, v))
	}
	return fs
}

// WithComponent returns a ZapLogger sharing the same zap core but tagging
// its own log lines with component.
func (z *ZapLogger) WithComponent(component string) Logger {
	return &ZapLogger{base: z.base, component: component}
}

// Sync flushes any buffered log entries. Safe to call on process shutdown;
// errors from syncing a console fd are expected and ignored.
func (z *ZapLogger) Sync() {
	_ = z.base.Sync()
}
