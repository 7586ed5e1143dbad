// Package obslog wires the gateway's structured logging. Every long-lived
// task and every foreground handler logs through here rather than the
// standard log package, so a component prefix and a request/job id are
// always present as fields instead of stapled into the message string.
package obslog

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey int

const requestIDKey ctxKey = iota

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// Root builds the process-wide base logger. Output goes to os.Stderr in
// console form when dev is true (readable during local runs) and as
// line-delimited JSON otherwise (the shape the rest of the pack's services
// emit for log aggregation).
func Root(dev bool, level zerolog.Level) zerolog.Logger {
	var w io.Writer = os.Stderr
	if dev {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// For returns a child logger tagged with the owning component name, e.g.
// "pool", "hlsproxy", "scrape".
func For(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// WithRequestID stores a correlation id (request id or job run id) on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the correlation id stored on ctx, or "".
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// Ctx returns logger annotated with the request id carried on ctx, if any.
func Ctx(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	if id := RequestID(ctx); id != "" {
		return l.With().Str("req_id", id).Logger()
	}
	return l
}
