package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger writes single-line JSON entries with a service/action/message shape:
//
//	{"level":"info","service":"dispatch-service","hostname":"...","action":"ws_connected",
//	 "request_id":"...","connection_id":"...","details":{...},"time":"...","message":"..."}
type Logger struct {
	service string
	log     zerolog.Logger
}

// New creates a structured logger for the given service writing to stdout.
// APP_ENV=dev switches to a human-readable console writer.
func New(service string) *Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(service, out)
}

// NewWithWriter creates a logger that writes to w.
func NewWithWriter(service string, w io.Writer) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}
	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}

	zl := zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Str("hostname", hn).
		Logger()

	return &Logger{service: service, log: zl}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{service: "nop", log: zerolog.Nop()}
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.write(ctx, l.log.Debug(), action, msg, details)
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.write(ctx, l.log.Info(), action, msg, details)
}

// Warn writes a WARN line with optional details.
func (l *Logger) Warn(ctx context.Context, action, msg string, details any) {
	l.write(ctx, l.log.Warn(), action, msg, details)
}

// Error writes an ERROR line and attaches an error stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	ev := l.log.Error().
		Str("error", strings.TrimSpace(err.Error())).
		Str("stack", string(debug.Stack()))
	l.write(ctx, ev, action, msg, details)
}

func (l *Logger) write(ctx context.Context, ev *zerolog.Event, action, msg string, details any) {
	if ev == nil {
		return
	}
	ev = ev.Str("action", safeAction(action))
	if id := requestID(ctx); id != "" {
		ev = ev.Str("request_id", id)
	}
	if id := connectionID(ctx); id != "" {
		ev = ev.Str("connection_id", id)
	}
	if details != nil {
		ev = ev.Interface("details", details)
	}
	ev.Msg(strings.TrimSpace(msg))
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID    ctxKey = "dispatch_request_id"
	ctxKeyConnectionID ctxKey = "dispatch_connection_id"
)

// WithRequestID returns a new context carrying request_id.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// WithConnectionID returns a new context carrying connection_id.
func (l *Logger) WithConnectionID(ctx context.Context, connID string) context.Context {
	if strings.TrimSpace(connID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyConnectionID, connID)
}

func requestID(ctx context.Context) string {
	return ctxString(ctx, ctxKeyRequestID)
}

func connectionID(ctx context.Context) string {
	return ctxString(ctx, ctxKeyConnectionID)
}

func ctxString(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}
