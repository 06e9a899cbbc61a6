// Package webapp hosts the HTTP surface of the service: the account pages,
// the GitHub auth flow, and the JSON flash-message endpoints.
package webapp

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gajeshbhat/snapcraft.io/internal/config"
	"github.com/gajeshbhat/snapcraft.io/internal/dashboard"
	"github.com/gajeshbhat/snapcraft.io/internal/flash"
	"github.com/gajeshbhat/snapcraft.io/internal/observability"
	"github.com/gajeshbhat/snapcraft.io/internal/session"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type Server struct {
	cfg         config.Config
	sessions    *session.Manager
	flashes     *flash.Store
	account     *dashboard.Client
	metrics     *observability.Metrics
	logger      *zap.Logger
	templates   *template.Template
	oauthClient *http.Client
}

func New(cfg config.Config, sessions *session.Manager, flashes *flash.Store, account *dashboard.Client, metrics *observability.Metrics, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		sessions:  sessions,
		flashes:   flashes,
		account:   account,
		metrics:   metrics,
		logger:    logger,
		templates: template.Must(template.ParseFS(templateFS, "templates/*.tmpl")),
		oauthClient: &http.Client{
			Timeout: cfg.UpstreamTimeout,
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.logRequests)
		r.Use(s.withSession)

		r.Get("/account", s.handleAccount)
		r.Get("/account/username", s.handleUsernamePage)
		r.Post("/account/username", s.handleUsernameUpdate)

		r.Get("/github/auth", s.handleGitHubAuth)
		r.Get("/github/auth/verify", s.handleGitHubAuthVerify)

		r.Post("/v1/flash", s.handleFlashCreate)
		r.Get("/v1/flash", s.handleFlashGet)
		r.Get("/v1/flash/all", s.handleFlashGetAll)
		r.Get("/v1/flash/exists", s.handleFlashExists)
		r.Delete("/v1/flash", s.handleFlashClear)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render template", zap.String("template", name), zap.Error(err))
	}
}

// authorizationFor returns the upstream credential for the request: the
// Authorization header when present, otherwise the one remembered in the
// session.
func authorizationFor(r *http.Request, sess *session.Session) string {
	if v := strings.TrimSpace(r.Header.Get("Authorization")); v != "" {
		return v
	}
	if sess != nil {
		return sess.GetString("dashboard_auth")
	}
	return ""
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
