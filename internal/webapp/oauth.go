package webapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const githubAuthRedirectKey = "github_auth_redirect"

// githubAuthSecretKey holds the exchanged access token in the session.
const githubAuthSecretKey = "github_auth_secret"

// handleGitHubAuth redirects to GitHub's authorize page, requesting access
// to the user's repository hooks and organizations.
func (s *Server) handleGitHubAuth(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	// Only same-site paths may be used as the post-auth destination.
	if back := r.URL.Query().Get("back"); strings.HasPrefix(back, "/") {
		sess.SetString(githubAuthRedirectKey, back)
	}

	params := url.Values{
		"client_id": {s.cfg.GitHubClientID},
		"scope":     {"admin:repo_hook read:org"},
		"state":     {sess.CSRFToken},
	}
	http.Redirect(w, r, s.cfg.GitHubAuthorizeURL+"?"+params.Encode(), http.StatusFound)
}

// handleGitHubAuthVerify handles the redirect back from GitHub: it checks
// the state against the session's CSRF token, exchanges the code for an
// access token, and stores the token in the session.
func (s *Server) handleGitHubAuthVerify(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	redirectTo := sess.PopString(githubAuthRedirectKey, "/account")

	if r.URL.Query().Get("state") != sess.CSRFToken {
		s.flashes.Flash(s.scope(r), "Invalid request", "negative", "")
		http.Redirect(w, r, redirectTo, http.StatusFound)
		return
	}

	token, err := s.exchangeGitHubCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.metrics.UpstreamErrors.WithLabelValues("github_token").Inc()
		s.logger.Warn("github token exchange", zap.Error(err))
		respondError(w, http.StatusBadRequest, "github_error", err.Error())
		return
	}

	sess.SetString(githubAuthSecretKey, token)
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

type githubTokenResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (s *Server) exchangeGitHubCode(ctx context.Context, code string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"code":          code,
		"client_id":     s.cfg.GitHubClientID,
		"client_secret": s.cfg.GitHubClientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GitHubTokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := s.oauthClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	defer res.Body.Close()

	var token githubTokenResponse
	if err := json.NewDecoder(res.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if token.Error != "" {
		return "", fmt.Errorf("github: %s", token.ErrorDescription)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("github: empty access token")
	}
	return token.AccessToken, nil
}
