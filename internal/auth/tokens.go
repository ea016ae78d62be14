package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

var ErrUnauthorized = errors.New("unauthorized")

const defaultIssuer = "taskboard"

// Tokens issues and verifies the HS256 session tokens handed out after sign-in.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
	parser *jwt.Parser
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: defaultIssuer,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
		now:    time.Now,
	}
}

func (t *Tokens) Issue(user model.User) (model.Session, error) {
	if user.ID == "" {
		return model.Session{}, errors.New("auth: user id is required")
	}
	now := t.now()
	exp := now.Add(t.ttl)
	claims := jwt.MapClaims{
		"sub": user.ID,
		"iss": t.issuer,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	if user.Email != "" {
		claims["email"] = user.Email
	}
	if len(user.Metadata) > 0 {
		claims["user_metadata"] = user.Metadata
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return model.Session{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return model.Session{
		AccessToken: signed,
		ExpiresAt:   time.Unix(exp.Unix(), 0).UTC(),
		User:        user,
	}, nil
}

// Parse verifies a session token and returns the session it represents.
func (t *Tokens) Parse(token string) (model.Session, error) {
	parsed, err := t.parser.Parse(token, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return model.Session{}, fmt.Errorf("%w: invalid claims", ErrUnauthorized)
	}

	now := t.now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return model.Session{}, fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	if !claims.VerifyIssuer(t.issuer, true) {
		return model.Session{}, fmt.Errorf("%w: invalid issuer", ErrUnauthorized)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return model.Session{}, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}

	user := model.User{ID: sub}
	user.Email, _ = claims["email"].(string)
	if meta, ok := claims["user_metadata"].(map[string]any); ok {
		user.Metadata = meta
	}

	var expiresAt time.Time
	if exp, ok := claims["exp"].(float64); ok {
		expiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return model.Session{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}
