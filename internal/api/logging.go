package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type requestIDKey struct{}

const RequestIDHeader = "X-Request-ID"

// RequestID returns the id the logging middleware gave the request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LoggingMiddleware logs every request once it completes, at a level that
// follows the response status.
func LoggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

			logAttrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("client_ip", r.RemoteAddr),
			}
			if sid := mux.Vars(r)["sessionID"]; sid != "" {
				logAttrs = append(logAttrs, slog.String("session", sid))
			}

			m := httpsnoop.CaptureMetrics(next, w, r)

			logAttrs = append(logAttrs,
				slog.Int("status_code", m.Code),
				slog.Duration("duration", m.Duration),
			)
			if m.Written > 0 {
				logAttrs = append(logAttrs, slog.Int64("response_size", m.Written))
			}

			logLevel := slog.LevelInfo
			if m.Code >= 500 {
				logLevel = slog.LevelError
			} else if m.Code >= 400 {
				logLevel = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), logLevel, "Request completed", logAttrs...)
		})
	}
}
