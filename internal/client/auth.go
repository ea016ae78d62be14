package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Session returns the current session, or nil when nobody is signed in.
func (c *Client) Session(ctx context.Context) (*model.Session, error) {
	if c.Token() == "" {
		return nil, nil
	}
	var s model.Session
	err := c.do(ctx, http.MethodGet, "/auth/session", nil, nil, &s)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &s, nil
}

// SetSession adopts an access token obtained from the sign-in redirect.
func (c *Client) SetSession(ctx context.Context, token string) (*model.Session, error) {
	c.mu.Lock()
	prev := c.token
	c.token = token
	c.mu.Unlock()

	s, err := c.Session(ctx)
	if err == nil && s == nil {
		err = errors.New("session: token rejected")
	}
	if err != nil {
		c.mu.Lock()
		c.token = prev
		c.mu.Unlock()
		return nil, err
	}
	c.emit(model.AuthSignedIn, s)
	return s, nil
}

// SignInURL is where the browser goes to start the OAuth flow.
func (c *Client) SignInURL(provider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/auth/login?" + q.Encode()
}

func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	c.emit(model.AuthSignedOut, nil)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// OnAuthStateChange registers fn for sign-in and sign-out. The returned func
// removes it.
func (c *Client) OnAuthStateChange(fn func(model.AuthEvent, *model.Session)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(ev model.AuthEvent, s *model.Session) {
	c.mu.RLock()
	fns := make([]func(model.AuthEvent, *model.Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(ev, s)
	}
}
