package webapp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gajeshbhat/snapcraft.io/internal/flash"
	"github.com/gajeshbhat/snapcraft.io/internal/session"
)

type sessionCtxKey struct{}

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*session.Session)
	return s
}

// withSession loads the request's session once before the handler runs and
// saves it once after. Handlers mutate the in-memory session only; two
// concurrent requests on the same session resolve as last-writer-wins on
// the whole value map.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cookieID string
		if c, err := r.Cookie(s.cfg.SessionCookieName); err == nil {
			cookieID = c.Value
		}

		sess, created, err := s.sessions.Ensure(r.Context(), cookieID)
		if err != nil {
			s.logger.Error("load session", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "session_unavailable", "could not load session")
			return
		}
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     s.cfg.SessionCookieName,
				Value:    sess.ID,
				Path:     "/",
				MaxAge:   int(s.sessions.TTL().Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			s.metrics.SessionEvents.WithLabelValues("created").Inc()
		} else {
			s.metrics.SessionEvents.WithLabelValues("resumed").Inc()
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionCtxKey{}, sess)))

		// Save even when the client has gone away mid-request.
		if err := s.sessions.Save(context.WithoutCancel(r.Context()), sess); err != nil {
			s.logger.Warn("save session", zap.String("session_id", sess.ID), zap.Error(err))
		}
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, route, elapsed)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestScope adapts a request and its session to the flash store: the
// mapping is decoded from the session on every read and encoded back on
// every write, keeping the read-modify-write boundary explicit.
type requestScope struct {
	path string
	sess *session.Session
}

func (sc *requestScope) Path() string { return sc.path }

func (sc *requestScope) Messages() flash.Messages {
	var msgs flash.Messages
	if !sc.sess.GetJSON(flash.SessionKey, &msgs) || msgs == nil {
		return flash.Messages{}
	}
	return msgs
}

func (sc *requestScope) SetMessages(m flash.Messages) {
	sc.sess.SetJSON(flash.SessionKey, m)
}

// scope returns the flash scope for the request, or nil when no session is
// attached (the flash store treats nil as "no active request context").
func (s *Server) scope(r *http.Request) flash.Scope {
	sess := sessionFrom(r.Context())
	if sess == nil {
		return nil
	}
	return &requestScope{path: r.URL.Path, sess: sess}
}
