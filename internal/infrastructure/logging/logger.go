package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/plcbridge/internal/infrastructure/config"
)

// serviceName is attached to every record.
const serviceName = "plcbridge"

// levels maps configured level names to slog levels.
var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Logger is the bridge's structured logger.
//
// It satisfies the narrow Logger interfaces declared by the bridge,
// MQTT and Modbus packages.
//
// Thread Safety: All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to the configured stream.
//
// Parameters:
//   - cfg: Logging section (level, format json|text, output stdout|stderr)
//   - version: Build version, attached to every record
func New(cfg config.LoggingConfig, version string) *Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWriter(out, cfg, version)
}

// NewWriter creates a logger writing to w. cfg.Output is ignored.
func NewWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel returns the slog level for a name, or info if unrecognised.
func parseLevel(level string) slog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l
	}
	return slog.LevelInfo
}

// With returns a logger that adds the given key-value pairs to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component returns a logger tagged with component=name.
//
//	bridgeLog := log.Component("bridge")
//	bridgeLog.Info("relay switched", "channel", "R3") // component=bridge
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the JSON, info-level logger used before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}
