package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"vk-comments-exporter/internal/config"
)

func InitFromConfig() {
	Init(os.Stdout, config.AppConfig.LogLevel, config.AppConfig.LogFormat)
}

// Init installs the default slog logger. Every record is also kept in the
// recent-events ring and fanned out to websocket subscribers.
func Init(w io.Writer, level, format string) {
	if w == nil {
		w = os.Stdout
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "json"
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(NewBroadcastHandler(handler)))
}

func Info(msg string, args ...any) {
	slog.Default().Info(msg, args...)
}

func Error(msg string, args ...any) {
	slog.Default().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	slog.Default().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	slog.Default().Debug(msg, args...)
}

func parseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
