// Package logger builds the process logger: a tint console sink, an optional
// rotating JSON file sink and redaction of secrets in front of both.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options defines parameters for logger creation.
type Options struct {
	Env          string
	ConsoleLevel string // default: info
	FileLevel    string // default: debug
	File         string // empty disables the file sink
	App          string

	// Rotation of File; zero values use the defaults below.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console overrides os.Stdout, mainly for tests.
	Console io.Writer
}

const (
	defaultMaxSizeMB  = 5
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// SensitiveKeys are attribute keys whose values never reach a log sink.
var SensitiveKeys = []string{"token", "secret", "admin_key", "password", "dsn"}

var closers sync.Map

// New creates configured slog.Logger instance.
func New(o Options) *slog.Logger {
	sinks := []slog.Handler{consoleHandler(o)}

	var closer func() error
	if o.File != "" {
		w := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    orDefault(o.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: orDefault(o.MaxBackups, defaultMaxBackups),
			MaxAge:     orDefault(o.MaxAgeDays, defaultMaxAgeDays),
			Compress:   true,
		}
		closer = w.Close
		sinks = append(sinks, slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: levelFromString(o.FileLevel, slog.LevelDebug),
		}))
	}

	var h slog.Handler = NewMultiHandler(sinks...)
	if len(sinks) == 1 {
		h = sinks[0]
	}

	l := slog.New(NewRedactingHandler(h, SensitiveKeys)).With(
		slog.String("app", o.App),
		slog.String("env", o.Env),
	)
	if closer != nil {
		closers.Store(l, closer)
	}
	return l
}

func consoleHandler(o Options) slog.Handler {
	w := o.Console
	noColor := true
	if w == nil {
		w = os.Stdout
		noColor = !isatty.IsTerminal(os.Stdout.Fd())
	}
	opts := &tint.Options{
		Level:      levelFromString(o.ConsoleLevel, slog.LevelInfo),
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	if o.Env == "dev" {
		opts.TimeFormat = time.Kitchen
		opts.AddSource = true
	}
	return tint.NewHandler(w, opts)
}

// Close closes the file sink of a logger returned by New.
func Close(logger *slog.Logger) error {
	if c, ok := closers.LoadAndDelete(logger); ok {
		return c.(func() error)()
	}
	return nil
}

func levelFromString(s string, def slog.Level) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return def
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// RedactingHandler masks sensitive attributes, bot tokens and URL passwords.
type RedactingHandler struct {
	inner slog.Handler
	keys  map[string]struct{}
}

// NewRedactingHandler wraps inner; sensitive keys match case-insensitively.
func NewRedactingHandler(inner slog.Handler, sensitive []string) *RedactingHandler {
	m := make(map[string]struct{}, len(sensitive))
	for _, k := range sensitive {
		m[strings.ToLower(k)] = struct{}{}
	}
	return &RedactingHandler{inner: inner, keys: m}
}

func (h *RedactingHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	nr := slog.NewRecord(r.Time, r.Level, redactString(r.Message), r.PC)
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	nr.AddAttrs(h.sanitize(attrs)...)
	return h.inner.Handle(ctx, nr)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithAttrs(h.sanitize(attrs)), keys: h.keys}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name), keys: h.keys}
}

func (h *RedactingHandler) sanitize(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = h.sanitizeAttr(a)
	}
	return out
}

func (h *RedactingHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	if _, ok := h.keys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(h.sanitize(v.Group())...)}
	case slog.KindString:
		return slog.String(a.Key, redactString(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			if msg := err.Error(); redactString(msg) != msg {
				return slog.String(a.Key, redactString(msg))
			}
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

const redacted = "[REDACTED]"

var (
	// Bot API tokens look like 123456789:AA... and also appear inside request URLs.
	botToken    = regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{30,}`)
	// Credentials embedded in connection strings.
	urlPassword = regexp.MustCompile(`(://[^:/@\s]+:)[^@\s]+@`)
)

func redactString(s string) string {
	s = botToken.ReplaceAllString(s, redacted)
	return urlPassword.ReplaceAllString(s, "${1}"+redacted+"@")
}

// MultiHandler fans a record out to every enabled sink.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.handlers {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes to every sink even when one fails and joins the errors.
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range h.handlers {
		if s.Enabled(ctx, r.Level) {
			errs = append(errs, s.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	return h.each(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (h *MultiHandler) each(fn func(slog.Handler) slog.Handler) *MultiHandler {
	out := make([]slog.Handler, len(h.handlers))
	for i, s := range h.handlers {
		out[i] = fn(s)
	}
	return &MultiHandler{handlers: out}
}
