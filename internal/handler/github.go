package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/onemployment/api/internal/auth"
	"github.com/onemployment/api/internal/service"
)

const (
	stateCookie    = "oauth_state"
	stateMaxAgeSec = 600
)

// GitHubProvider is the part of auth.GitHubProvider the handler uses.
type GitHubProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// GitHubHandler runs the OAuth sign-in flow. The token never goes in a
// cookie: the SPA picks it up from the fragment of
// <clientURL>/auth/callback#token=... and stores it like a password login.
type GitHubHandler struct {
	github    GitHubProvider
	accounts  *service.AuthService
	clientURL string
	logger    *slog.Logger
}

func NewGitHubHandler(github GitHubProvider, accounts *service.AuthService, clientURL string, logger *slog.Logger) *GitHubHandler {
	return &GitHubHandler{
		github:    github,
		accounts:  accounts,
		clientURL: strings.TrimRight(clientURL, "/"),
		logger:    logger,
	}
}

// HandleLogin: GET /api/auth/github/login
//
// The random state is kept in a short-lived HttpOnly cookie and checked
// on the callback, so only flows started here can complete.
func (h *GitHubHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   stateMaxAgeSec,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback: GET /api/auth/github/callback?code=...&state=...
func (h *GitHubHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || q.Get("state") != cookie.Value {
		h.logger.Warn("github callback: state mismatch")
		h.fail(w, r, "invalid_state")
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if denied := q.Get("error"); denied != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", denied))
		h.fail(w, r, "denied")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.fail(w, r, "missing_code")
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		h.fail(w, r, "exchange_failed")
		return
	}

	res, err := h.accounts.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("github callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		h.fail(w, r, "signin_failed")
		return
	}

	fragment := url.Values{"token": {res.Token}}.Encode()
	http.Redirect(w, r, h.clientURL+"/auth/callback#"+fragment, http.StatusSeeOther)
}

func (h *GitHubHandler) fail(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.clientURL+"/login?error="+url.QueryEscape(reason), http.StatusSeeOther)
}
