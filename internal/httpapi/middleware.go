package httpapi

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/acerestreamer/gateway/internal/obslog"
)

const adminRateLimitWindow = time.Minute

// requestIDMiddleware wraps chi's RequestID generator and stores the id on
// the context via obslog.WithRequestID, the hook every handler and the
// access logger reads through obslog.Ctx. Mirrors the request-id-into-
// logging-context pattern used for cross-cutting correlation ids, adapted
// to this gateway's obslog package instead of a bespoke logging context.
func requestIDMiddleware(next http.Handler) http.Handler {
	return chimiddleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimiddleware.GetReqID(r.Context())
		ctx := obslog.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	}))
}

// accessLog emits one structured line per request, tagged with the request
// id requestIDMiddleware already placed on the context.
func accessLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			obslog.Ctx(r.Context(), log).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Int("bytes", ww.BytesWritten()).
				Msg("request")
		})
	}
}
