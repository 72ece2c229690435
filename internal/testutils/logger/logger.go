/*
Package logger provides loggers for tests.
*/
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/alphabill-org/ptsim/logger"
)

/*
New returns logger for test "t" on debug level. Log output is written into
the test log so it's only shown when test fails (or with "-v").

Log level can be changed with environment variable PTSIM_TEST_LOG_LEVEL.
*/
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, levelFromEnv(slog.LevelDebug))
}

// NewLvl returns logger for test "t" on given level.
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	cfg := &logger.LogConfiguration{Format: "text", Level: "TRACE", TimeFormat: "15:04:05.0000"}
	h, err := cfg.Handler(testLogWriter{t})
	if err != nil {
		t.Fatalf("creating test log handler: %v", err)
	}
	return slog.New(&levelHandler{Handler: h, level: level})
}

/*
LoggerBuilder returns logger factory which ignores the configuration and
always returns test logger.
*/
func LoggerBuilder(t testing.TB) func(*logger.LogConfiguration) (*slog.Logger, error) {
	return func(*logger.LogConfiguration) (*slog.Logger, error) {
		return New(t), nil
	}
}

// NOP returns logger which discards everything.
func NOP() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)}))
}

type testLogWriter struct {
	t testing.TB
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

type levelHandler struct {
	slog.Handler
	level slog.Level
}

func (h *levelHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return lvl >= h.level
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}

func levelFromEnv(def slog.Level) slog.Level {
	s := os.Getenv("PTSIM_TEST_LOG_LEVEL")
	if s == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return def
	}
	return lvl
}
