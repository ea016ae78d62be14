package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

const SessionCookie = "session"

type ctxKey struct{}

// Middleware puts the verified session on the request context.
type Middleware struct {
	tokens *Tokens
}

func NewMiddleware(tokens *Tokens) *Middleware {
	return &Middleware{tokens: tokens}
}

// Require rejects requests without a valid session. The token is read from the
// Authorization header, the session cookie, or the access_token query
// parameter, which EventSource clients need because they cannot set headers.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			respond.Error(w, r, http.StatusUnauthorized, "missing session")
			return
		}
		session, err := m.tokens.Parse(token)
		if err != nil {
			respond.Error(w, r, http.StatusUnauthorized, "invalid session")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("access_token")
}

func WithSession(ctx context.Context, s model.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func SessionFromContext(ctx context.Context) (model.Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(model.Session)
	return s, ok
}
