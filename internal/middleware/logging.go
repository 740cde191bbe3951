// Package middleware contains HTTP middleware functions.
//
// The pattern is:
//
//	func MyMiddleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // before
//	        next.ServeHTTP(w, r)
//	        // after
//	    })
//	}
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/storyline/internal/auth"
)

// Logger returns an HTTP middleware that logs each completed request.
//
// Each line carries method, path, status, duration, bytes written, the chi
// request id and, when the request was authenticated, the user id. Server
// errors are logged at Error level, client errors at Warn.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// RequireAuth runs further down the chain; RecordUser reports
			// the user id back through this holder.
			holder := &userHolder{}
			next.ServeHTTP(ww, r.WithContext(withUserHolder(r.Context(), holder)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
			}
			if id := chimiddleware.GetReqID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("requestID", id))
			}
			if holder.userID != "" {
				attrs = append(attrs, slog.String("userID", holder.userID))
			}

			switch {
			case status >= 500:
				logger.Error("request completed", attrs...)
			case status >= 400:
				logger.Warn("request completed", attrs...)
			default:
				logger.Info("request completed", attrs...)
			}
		})
	}
}

// RecordUser copies the authenticated user id into the request log line.
// Mount it after auth.RequireAuth.
func RecordUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if holder := userHolderFrom(r.Context()); holder != nil {
			if id, ok := auth.UserIDFromContext(r.Context()); ok {
				holder.userID = id
			}
		}
		next.ServeHTTP(w, r)
	})
}
