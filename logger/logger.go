package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// LevelTrace is more verbose than debug, used for per byte memory access logging.
	LevelTrace = slog.LevelDebug - 4
	// levelNone disables logging.
	levelNone = slog.Level(1000)
)

/*
LogConfiguration is loaded from the logger configuration YAML file, individual
fields can be overridden by command line flags.
*/
type LogConfiguration struct {
	// one of TRACE, DEBUG, INFO, WARN, ERROR, NONE, or slog level with offset (ie "info+1")
	Level string `yaml:"defaultLevel"`
	// one of text, json, ecs, console
	Format string `yaml:"format"`
	// file name or one of the special values: stdout, stderr, discard
	OutputPath string `yaml:"outputPath"`
	// Go time format string, "none" to omit time from the log records
	TimeFormat string `yaml:"timeFormat"`
	// add source file and line of the logging call to the record
	ShowSource bool `yaml:"showSource"`
	// disables colors of the "console" format
	NoColor bool `yaml:"noColor"`

	writer io.Writer
}

/*
New creates logger based on configuration, nil config means default config.
*/
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	if err := cfg.initWriter(); err != nil {
		return nil, fmt.Errorf("initializing log writer: %w", err)
	}

	h, err := cfg.Handler(cfg.writer)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating log handler: %w", err), cfg.Close())
	}
	return slog.New(h), nil
}

/*
Close closes the log file opened by New. Standard streams are left open and
calling Close more than once is safe.
*/
func (cfg *LogConfiguration) Close() error {
	f, ok := cfg.writer.(*os.File)
	if !ok || f == os.Stdout || f == os.Stderr {
		return nil
	}
	cfg.writer = nil
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	return nil
}

/*
Handler returns log handler for the configured format writing into "out".
*/
func (cfg *LogConfiguration) Handler(out io.Writer) (slog.Handler, error) {
	opt := &slog.HandlerOptions{
		AddSource: cfg.ShowSource,
		Level:     cfg.logLevel(),
	}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		opt.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatDataAttrAsJSON)
		return slog.NewTextHandler(out, opt), nil
	case "json":
		opt.ReplaceAttr = formatTimeAttr(cfg.TimeFormat)
		return slog.NewJSONHandler(out, opt), nil
	case "ecs":
		opt.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatAttrECS)
		return slog.NewJSONHandler(out, opt), nil
	case "console":
		return newConsoleHandler(out, opt.Level, cfg.TimeFormat, cfg.NoColor), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func (cfg *LogConfiguration) logLevel() slog.Level {
	if cfg.isDiscard() {
		return levelNone
	}

	switch strings.ToUpper(cfg.Level) {
	case "":
		return slog.LevelInfo
	case "WARNING":
		return slog.LevelWarn
	case "TRACE":
		return LevelTrace
	case "NONE":
		return levelNone
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (cfg *LogConfiguration) isDiscard() bool {
	return cfg.OutputPath == "discard" || cfg.OutputPath == os.DevNull
}

func (cfg *LogConfiguration) initWriter() error {
	if cfg.writer != nil {
		return nil
	}

	switch cfg.OutputPath {
	case "", "stderr":
		cfg.writer = os.Stderr
	case "stdout":
		cfg.writer = os.Stdout
	case "discard", os.DevNull:
		cfg.writer = io.Discard
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0700); err != nil {
			return fmt.Errorf("creating directory for log file: %w", err)
		}
		f, err := os.OpenFile(filepath.Clean(cfg.OutputPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		cfg.writer = f
	}
	return nil
}
