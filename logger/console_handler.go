package logger

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
)

/*
consoleHandler is slog handler which outputs human friendly (colored)
log records using zerolog's ConsoleWriter.
*/
type consoleHandler struct {
	zl     zerolog.Logger
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string // group names joined by "."
}

func newConsoleHandler(out io.Writer, level slog.Leveler, timeFormat string, noColor bool) *consoleHandler {
	cw := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: "15:04:05.0000",
	}
	switch timeFormat {
	case "":
	case "none":
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	default:
		cw.TimeFormat = timeFormat
	}

	return &consoleHandler{
		zl:    zerolog.New(cw).Level(zerolog.TraceLevel),
		level: level,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	ev := h.zl.WithLevel(zerologLevel(r.Level))
	if ev == nil {
		return nil
	}
	if !r.Time.IsZero() {
		ev.Time(zerolog.TimestampFieldName, r.Time)
	}
	for _, a := range h.attrs {
		addConsoleAttr(ev, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addConsoleAttr(ev, h.prefix, a)
		return true
	})
	ev.Msg(r.Message)
	return nil
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func addConsoleAttr(ev *zerolog.Event, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := prefix + a.Key

	switch a.Value.Kind() {
	case slog.KindString:
		ev.Str(key, a.Value.String())
	case slog.KindInt64:
		ev.Int64(key, a.Value.Int64())
	case slog.KindUint64:
		ev.Uint64(key, a.Value.Uint64())
	case slog.KindFloat64:
		ev.Float64(key, a.Value.Float64())
	case slog.KindBool:
		ev.Bool(key, a.Value.Bool())
	case slog.KindDuration:
		ev.Dur(key, a.Value.Duration())
	case slog.KindTime:
		ev.Str(key, a.Value.Time().Format(time.RFC3339Nano))
	case slog.KindGroup:
		p := prefix
		if a.Key != "" {
			p = key + "."
		}
		for _, ga := range a.Value.Group() {
			addConsoleAttr(ev, p, ga)
		}
	default:
		if err, ok := a.Value.Any().(error); ok {
			ev.Str(key, err.Error())
			return
		}
		ev.Interface(key, a.Value.Any())
	}
}

func zerologLevel(lvl slog.Level) zerolog.Level {
	switch {
	case lvl >= slog.LevelError:
		return zerolog.ErrorLevel
	case lvl >= slog.LevelWarn:
		return zerolog.WarnLevel
	case lvl >= slog.LevelInfo:
		return zerolog.InfoLevel
	case lvl >= slog.LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

