package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"parcelview/internal/errors"
	"parcelview/internal/logging"
	"parcelview/internal/metrics"
	"parcelview/internal/session"
)

const cookieName = "parcelview_session"

// accessLog attaches the logger to the request context and logs each
// request once it completes.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		r = r.WithContext(logging.WithLogger(r.Context(), s.deps.Logger))

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.HTTPRequestDurationMs.WithLabelValues(route, strconv.Itoa(status)).Observe(float64(elapsed.Milliseconds()))
		s.deps.Logger.Debug("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"elapsed", elapsed.Round(time.Microsecond))
	})
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

// requireSession loads the session named by the cookie. Pages redirect to
// the login form without one; API calls get 401.
func (s *Server) requireSession(page bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cookieName); err == nil {
				id = c.Value
			}
			sess, err := s.deps.Sessions.Lookup(r.Context(), id)
			if err != nil {
				if !errors.Is(err, errors.ErrCodeSessionNotFound) {
					s.fail(w, r, err, page)
					return
				}
				if page {
					http.Redirect(w, r, "/login", http.StatusSeeOther)
					return
				}
				s.fail(w, r, errors.New(errors.ErrCodeAuth, "login required"), false)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
		})
	}
}
