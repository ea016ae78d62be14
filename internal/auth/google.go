package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

const googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// Provider is an OAuth identity provider that can turn an authorization code
// into a user.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (model.User, error)
}

// GoogleProvider runs the authorization-code flow against Google and trusts
// the id_token it gets back once its signature checks out against Google's
// published keys.
type GoogleProvider struct {
	config *oauth2.Config
	jwks   *keyfunc.JWKS
	parser *jwt.Parser
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	jwks, err := keyfunc.Get(googleJWKSURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("google jwks: %w", err)
	}
	return newGoogleProvider(clientID, clientSecret, redirectURL, jwks), nil
}

func newGoogleProvider(clientID, clientSecret, redirectURL string, jwks *keyfunc.JWKS) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		jwks:   jwks,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
	}
}

func (g *GoogleProvider) Name() string { return "google" }

func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (g *GoogleProvider) Exchange(ctx context.Context, code string) (model.User, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return model.User{}, fmt.Errorf("google exchange: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return model.User{}, errors.New("google exchange: missing id_token")
	}
	return g.verifyIDToken(raw)
}

func (g *GoogleProvider) verifyIDToken(raw string) (model.User, error) {
	parsed, err := g.parser.Parse(raw, g.jwks.Keyfunc)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return model.User{}, fmt.Errorf("%w: invalid claims", ErrUnauthorized)
	}
	if !claims.VerifyAudience(g.config.ClientID, true) {
		return model.User{}, fmt.Errorf("%w: invalid audience", ErrUnauthorized)
	}
	issuerOK := false
	for _, iss := range googleIssuers {
		if claims.VerifyIssuer(iss, true) {
			issuerOK = true
			break
		}
	}
	if !issuerOK {
		return model.User{}, fmt.Errorf("%w: invalid issuer", ErrUnauthorized)
	}
	return userFromGoogleClaims(claims)
}

func userFromGoogleClaims(claims jwt.MapClaims) (model.User, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return model.User{}, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}
	user := model.User{ID: "google:" + sub, Metadata: map[string]any{}}
	user.Email, _ = claims["email"].(string)
	if name, ok := claims["name"].(string); ok && name != "" {
		user.Metadata["full_name"] = name
		user.Metadata["name"] = name
	}
	if picture, ok := claims["picture"].(string); ok && picture != "" {
		user.Metadata["avatar_url"] = picture
	}
	return user, nil
}
