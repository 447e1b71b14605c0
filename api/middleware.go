package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/simorgh/advanced-logger/logger"
	"github.com/simorgh/advanced-logger/models"
)

// RequestLogger captures the per-request identity and logs each request
// through the facade once the handler finishes, with the measured execution
// time and status code. In-handler log calls inherit the correlation fields
// from the request context.
func RequestLogger(svc *logger.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := models.RequestInfo{
				IPAddress: r.RemoteAddr,
				UserAgent: r.UserAgent(),
				RequestID: requestID(r),
				Method:    r.Method,
				URL:       requestURL(r),
			}
			if cookie, err := r.Cookie("session_id"); err == nil {
				info.SessionID = cookie.Value
			}

			ctx := logger.WithRequest(r.Context(), info)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			elapsed := time.Since(start).Seconds()

			if routeCtx := chi.RouteContext(ctx); routeCtx != nil {
				info.RouteName = routeCtx.RoutePattern()
			}

			// Reads are not worth a record of their own; a dashboard polling
			// its log list must not generate logs.
			if r.Method == http.MethodGet {
				return
			}

			status := ww.Status()
			svc.Request(info).
				Category("api").
				Context(models.Context{
					"status_code":    status,
					"execution_time": elapsed,
				}).
				Log(ctx, requestLevel(status), r.Method+" "+r.URL.Path, nil)
		})
	}
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return ""
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func requestLevel(status int) models.Level {
	switch {
	case status >= 500:
		return models.LevelError
	case status >= 400:
		return models.LevelWarning
	default:
		return models.LevelInfo
	}
}
