package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

const callbackPath = "/auth/callback"

type Page int

const (
	PageLanding Page = iota
	PageBoard
	PageCallback
)

func (p Page) String() string {
	switch p {
	case PageBoard:
		return "board"
	case PageCallback:
		return "callback"
	default:
		return "landing"
	}
}

// AuthService is the session side of the server.
type AuthService interface {
	Session(ctx context.Context) (*model.Session, error)
	SetSession(ctx context.Context, token string) (*model.Session, error)
	OnAuthStateChange(fn func(model.AuthEvent, *model.Session)) func()
	SignInURL(provider, redirectTo string) string
	SignOut(ctx context.Context) error
}

// App tracks who is signed in and which page is showing.
type App struct {
	auth    AuthService
	siteURL string
	logger  *zap.Logger

	mu          sync.RWMutex
	page        Page
	user        *model.User
	unsubscribe func()
	onChange    func()
}

// New builds the shell for the given entry path. Paths under /auth/callback
// start on the callback page, everything else on the landing page.
func New(auth AuthService, siteURL, path string, logger *zap.Logger) *App {
	page := PageLanding
	if strings.HasPrefix(path, callbackPath) {
		page = PageCallback
	}
	return &App{
		auth:    auth,
		siteURL: strings.TrimRight(siteURL, "/"),
		logger:  logger,
		page:    page,
	}
}

func (a *App) OnChange(fn func()) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// Start reads the current session once, then follows sign-in and sign-out.
func (a *App) Start(ctx context.Context) error {
	session, err := a.auth.Session(ctx)
	if err != nil {
		a.logger.Warn("failed to read session", zap.Error(err))
	} else if session != nil {
		a.restored(session)
	}

	unsubscribe := a.auth.OnAuthStateChange(func(ev model.AuthEvent, s *model.Session) {
		switch ev {
		case model.AuthSignedIn:
			if s != nil {
				a.signedIn(s)
			}
		case model.AuthSignedOut:
			a.signedOut()
		}
	})
	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.mu.Unlock()
	return err
}

func (a *App) Stop() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// SignInWithGoogle returns the address that starts the Google sign-in. The
// provider sends the browser back to the site's callback page.
func (a *App) SignInWithGoogle() string {
	return a.auth.SignInURL("google", a.siteURL+callbackPath)
}

// CompleteSignIn adopts the access token handed back on the callback page.
func (a *App) CompleteSignIn(ctx context.Context, token string) error {
	if _, err := a.auth.SetSession(ctx, strings.TrimSpace(token)); err != nil {
		a.logger.Warn("sign-in failed", zap.Error(err))
		a.setPage(PageLanding)
		return fmt.Errorf("complete sign-in: %w", err)
	}
	return nil
}

// SignOut always lands on the landing page, even if the server call fails.
func (a *App) SignOut(ctx context.Context) error {
	err := a.auth.SignOut(ctx)
	if err != nil {
		a.logger.Warn("sign-out failed", zap.Error(err))
	}
	a.signedOut()
	return err
}

func (a *App) Page() Page {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.page
}

func (a *App) User() *model.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

// DisplayName falls back to the same placeholder a user without a name or
// email gets.
func (a *App) DisplayName() string {
	u := a.User()
	if u == nil {
		return model.User{}.DisplayName()
	}
	return u.DisplayName()
}

// restored adopts a session found at startup. Only the landing page moves on
// to the board; the callback page waits for the sign-in to complete.
func (a *App) restored(s *model.Session) {
	a.mu.Lock()
	user := s.User
	a.user = &user
	moved := a.page == PageLanding
	if moved {
		a.page = PageBoard
	}
	a.mu.Unlock()
	a.logger.Info("session restored", zap.String("user_id", user.ID), zap.Bool("to_board", moved))
	a.notify()
}

func (a *App) signedIn(s *model.Session) {
	a.mu.Lock()
	user := s.User
	a.user = &user
	a.page = PageBoard
	a.mu.Unlock()
	a.logger.Info("signed in", zap.String("user_id", user.ID))
	a.notify()
}

func (a *App) signedOut() {
	a.mu.Lock()
	a.user = nil
	a.page = PageLanding
	a.mu.Unlock()
	a.notify()
}

func (a *App) setPage(p Page) {
	a.mu.Lock()
	a.page = p
	a.mu.Unlock()
	a.notify()
}

func (a *App) notify() {
	a.mu.RLock()
	fn := a.onChange
	a.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
