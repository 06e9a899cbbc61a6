package webapp

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/gajeshbhat/snapcraft.io/internal/dashboard"
	"github.com/gajeshbhat/snapcraft.io/internal/flash"
)

type accountPage struct {
	Account dashboard.Account
	Flash   []flash.Entry
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	auth := authorizationFor(r, sess)
	if auth == "" {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "no dashboard credentials")
		return
	}

	account, err := s.account.GetAccount(r.Context(), auth)
	if err != nil {
		s.metrics.UpstreamErrors.WithLabelValues("get_account").Inc()
		s.logger.Warn("fetch account", zap.Error(err))
		respondError(w, http.StatusBadGateway, "upstream_error", "could not load account")
		return
	}

	s.render(w, "account.tmpl", accountPage{
		Account: account,
		Flash:   s.flashes.GetAll(s.scope(r)),
	})
}

func (s *Server) handleUsernamePage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	auth := authorizationFor(r, sess)
	if auth == "" {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "no dashboard credentials")
		return
	}

	account, err := s.account.GetAccount(r.Context(), auth)
	if err != nil {
		s.metrics.UpstreamErrors.WithLabelValues("get_account").Inc()
		s.logger.Warn("fetch account", zap.Error(err))
	}

	s.render(w, "username.tmpl", accountPage{
		Account: account,
		Flash:   s.flashes.GetAll(s.scope(r)),
	})
}

func (s *Server) handleUsernameUpdate(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	auth := authorizationFor(r, sess)
	if auth == "" {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "no dashboard credentials")
		return
	}

	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	if username == "" {
		http.Redirect(w, r, "/account/username", http.StatusFound)
		return
	}

	if err := s.account.PatchUsername(r.Context(), auth, username); err != nil {
		s.metrics.UpstreamErrors.WithLabelValues("patch_username").Inc()
		s.logger.Warn("patch username", zap.Error(err))
		s.flashes.Flash(s.scope(r), "Could not update username", "negative", "")
		http.Redirect(w, r, "/account/username", http.StatusFound)
		return
	}

	s.flashes.Flash(s.scope(r), "Username updated", "positive", "")
	http.Redirect(w, r, "/account", http.StatusFound)
}
