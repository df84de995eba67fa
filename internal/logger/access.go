package logger

import (
	"log/slog"
	"net/http"

	"chatgate/internal/gate"
)

// AnonymousUser is logged for requests without an authenticated principal.
const AnonymousUser = "Anonymous"

// AccessLog logs one line per request with the caller and path. It must run
// after authentication so the principal is in the request context. Timestamps
// come from clock so they agree with the gates.
func AccessLog(logger *slog.Logger, clock gate.Clock) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = gate.SystemClock{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := clock.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Info("Request",
				"at", start,
				"user", userName(gate.PrincipalFrom(r.Context())),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", clock.Now().Sub(start),
			)
		})
	}
}

func userName(p gate.Principal) string {
	if !p.Authenticated {
		return AnonymousUser
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Subject
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
