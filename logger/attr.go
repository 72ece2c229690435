package logger

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// attribute keys shared by the simulator components
const (
	moduleKey  = "module"
	errorKey   = "err"
	dataKey    = "data"
	processKey = "proc"
	pageKey    = "page"
)

/*
Module names the component (pmm, vmm, commands...) the logger belongs to.
Components create sub-logger with it once:

	log := obs.Logger().With(logger.Module("pmm"))
*/
func Module(name string) slog.Attr {
	return slog.String(moduleKey, name)
}

// Error adds error to the log record.
func Error(err error) slog.Attr {
	return slog.Any(errorKey, err)
}

/*
Data attaches arbitrary value (ie configuration struct) to the record. Text
and ECS formats render it as JSON.
*/
func Data(d any) slog.Attr {
	return slog.Any(dataKey, d)
}

/*
Process is the ID of the simulated process the record is about. Code working
on behalf of single process should create sub-logger with it.
*/
func Process(id int) slog.Attr {
	return slog.Int(processKey, id)
}

// Page is physical page number.
func Page[T ~uint8 | ~int](p T) slog.Attr {
	return slog.Int(pageKey, int(p))
}

type attrFormatter = func(groups []string, a slog.Attr) slog.Attr

// composeAttrFmt chains non-nil formatters, returns nil when there is none.
func composeAttrFmt(f ...attrFormatter) attrFormatter {
	var chain []attrFormatter
	for _, fn := range f {
		if fn != nil {
			chain = append(chain, fn)
		}
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		for _, fn := range chain {
			a = fn(groups, a)
		}
		return a
	}
}

// formatTimeAttr returns nil for empty format, "none" drops the time attribute.
func formatTimeAttr(format string) attrFormatter {
	switch format {
	case "":
		return nil
	case "none":
		return func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		}
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey && len(groups) == 0 {
			if t := a.Value.Time(); !t.IsZero() {
				a.Value = slog.StringValue(t.Format(format))
			}
		}
		return a
	}
}

func formatDataAttrAsJSON(groups []string, a slog.Attr) slog.Attr {
	if a.Key != dataKey || a.Value.Kind() != slog.KindAny {
		return a
	}
	if b, err := json.Marshal(a.Value.Any()); err == nil {
		a.Value = slog.StringValue(string(b))
	}
	return a
}

/*
formatAttrECS maps the simulator attributes onto Elastic Common Schema
fields. Page number has no ECS counterpart and goes under "memory".
*/
func formatAttrECS(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.MessageKey:
		return slog.String("message", a.Value.String())
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok {
			return slog.Group("log",
				slog.Group("origin",
					slog.String("function", funcName(src.Function)),
					slog.Group("file", slog.String("name", src.File), slog.Int("line", src.Line)),
				),
			)
		}
	case moduleKey:
		return slog.Group("log", slog.String("logger", a.Value.String()))
	case processKey:
		return slog.Group("process", slog.Any("pid", a.Value))
	case pageKey:
		return slog.Group("memory", slog.Any("page", a.Value))
	case errorKey:
		return slog.Group("error", slog.Any("message", a.Value.Any()))
	case dataKey:
		return formatDataAttrAsJSON(groups, a)
	}
	return a
}

/*
funcName strips the package path from the fully qualified function name,
"github.com/alphabill-org/ptsim/vmm.(*Machine).Load" becomes "(*Machine).Load".
*/
func funcName(fn string) string {
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}
	if _, name, ok := strings.Cut(fn, "."); ok {
		return name
	}
	return fn
}
