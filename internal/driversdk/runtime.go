package driversdk

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// NewStdLogger returns a text logger on stderr at info level.
func NewStdLogger() *slog.Logger {
	return NewLogger(os.Stderr, "info")
}

// NewLogger builds a text logger writing to w. Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now() }

type NoopHealth struct{}

func (NoopHealth) SetServing(bool) {}

// JSONConfig wraps the raw driver config file.
type JSONConfig struct {
	raw []byte
}

func NewJSONConfig(b []byte) JSONConfig { return JSONConfig{raw: b} }

func (c JSONConfig) Decode(v any) error {
	if len(strings.TrimSpace(string(c.raw))) == 0 {
		return nil
	}
	return json.Unmarshal(c.raw, v)
}
