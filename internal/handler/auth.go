package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/auth"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

const (
	stateCookie    = "oauth_state"
	redirectCookie = "oauth_redirect"
	stateTTL       = 10 * time.Minute
)

type AuthHandler struct {
	providers map[string]auth.Provider
	tokens    *auth.Tokens
	siteURL   string
	logger    *zap.Logger
}

// NewAuthHandler wires the sign-in endpoints. siteURL is the only origin,
// besides relative paths, that redirect_to may point at.
func NewAuthHandler(tokens *auth.Tokens, siteURL string, logger *zap.Logger, providers ...auth.Provider) *AuthHandler {
	h := &AuthHandler{
		providers: make(map[string]auth.Provider, len(providers)),
		tokens:    tokens,
		siteURL:   strings.TrimRight(siteURL, "/"),
		logger:    logger,
	}
	for _, p := range providers {
		h.providers[p.Name()] = p
	}
	return h
}

// Login starts the OAuth flow and sends the browser to the provider.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("provider")
	if name == "" {
		name = "google"
	}
	provider, ok := h.providers[name]
	if !ok {
		respond.Error(w, r, http.StatusBadRequest, "unknown provider "+strconv.Quote(name))
		return
	}

	redirectTo := r.URL.Query().Get("redirect_to")
	if redirectTo != "" && !h.allowedRedirect(redirectTo) {
		respond.Error(w, r, http.StatusBadRequest, "redirect_to is not allowed")
		return
	}

	state := uuid.NewString()
	h.setShortCookie(w, r, stateCookie, name+"|"+state)
	if redirectTo != "" {
		h.setShortCookie(w, r, redirectCookie, redirectTo)
	}
	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the flow: it checks state, exchanges the code and issues
// a session.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		respond.Error(w, r, http.StatusUnauthorized, "sign-in failed: "+e)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "missing oauth state")
		return
	}
	name, state, found := strings.Cut(c.Value, "|")
	if !found || state == "" || state != q.Get("state") {
		respond.Error(w, r, http.StatusBadRequest, "oauth state mismatch")
		return
	}
	provider, ok := h.providers[name]
	if !ok {
		respond.Error(w, r, http.StatusBadRequest, "unknown provider "+strconv.Quote(name))
		return
	}
	code := q.Get("code")
	if code == "" {
		respond.Error(w, r, http.StatusBadRequest, "missing code")
		return
	}

	user, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("oauth exchange failed", zap.String("provider", name), zap.Error(err))
		respond.Error(w, r, http.StatusUnauthorized, "sign-in failed")
		return
	}
	session, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("failed to issue session", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("user signed in", zap.String("provider", name), zap.String("user_id", user.ID))

	clearCookie(w, stateCookie)
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	if rc, err := r.Cookie(redirectCookie); err == nil && rc.Value != "" {
		clearCookie(w, redirectCookie)
		frag := url.Values{}
		frag.Set("access_token", session.AccessToken)
		frag.Set("expires_at", strconv.FormatInt(session.ExpiresAt.Unix(), 10))
		http.Redirect(w, r, rc.Value+"#"+frag.Encode(), http.StatusFound)
		return
	}
	respond.JSON(w, r, http.StatusOK, session)
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		respond.Error(w, r, http.StatusUnauthorized, "no session")
		return
	}
	session, err := h.tokens.Parse(token)
	if err != nil {
		respond.Error(w, r, http.StatusUnauthorized, "invalid session")
		return
	}
	respond.JSON(w, r, http.StatusOK, session)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearCookie(w, auth.SessionCookie)
	w.WriteHeader(http.StatusNoContent)
}

// allowedRedirect accepts paths on this site and addresses under the site URL.
func (h *AuthHandler) allowedRedirect(target string) bool {
	// browsers read \ as / and drop control characters
	if strings.ContainsFunc(target, func(r rune) bool { return r == '\\' || unicode.IsControl(r) }) {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
	}
	return h.siteURL != "" && (target == h.siteURL || strings.HasPrefix(target, h.siteURL+"/"))
}

func (h *AuthHandler) setShortCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	path := "/"
	if name != auth.SessionCookie {
		path = "/auth"
	}
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: path, MaxAge: -1, HttpOnly: true})
}
