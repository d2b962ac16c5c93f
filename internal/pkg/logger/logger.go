// Package logger 提供基于 zerolog 的统一日志能力。
//
// 业务代码统一通过 Ctx(ctx) 取得 logger，日志会自动带上当前 span 的 trace_id/span_id，
// 方便在 Jaeger 与日志平台之间互相跳转。
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	Level    string `mapstructure:"level" yaml:"level"`         // debug, info, warn, error
	Format   string `mapstructure:"format" yaml:"format"`       // json, console
	Output   string `mapstructure:"output" yaml:"output"`       // stdout, file
	FilePath string `mapstructure:"file_path" yaml:"file_path"` // output=file 时生效
}

var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DefaultContextLogger = &base
}

// Init 根据配置重建全局 logger，可以在配置热更新时重复调用
func Init(cfg Config) error {
	var w io.Writer = os.Stdout
	if cfg.Output == "file" {
		if cfg.FilePath == "" {
			return fmt.Errorf("log.file_path is required when log.output=file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		w = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     7,
			Compress:   true,
		}
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	}

	base = zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Caller().Logger()
	zerolog.DefaultContextLogger = &base
	return nil
}

// UpdateLevel 动态调整日志级别
func UpdateLevel(level string) {
	base = base.Level(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 返回全局 logger
func Get() *zerolog.Logger { return &base }

// WithContext 把全局 logger 放进 context，后续 Ctx 调用会取到它
func WithContext(ctx context.Context) context.Context {
	return base.WithContext(ctx)
}

// Ctx 返回 context 中的 logger，并附带 trace 信息
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	withTrace := l.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &withTrace
}
