package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/auth"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/realtime"
	"github.com/BuzzLyutic/taskboard/internal/repo"
	"github.com/BuzzLyutic/taskboard/internal/service"
)

type fakeProvider struct {
	user model.User
	err  error
}

func (f *fakeProvider) Name() string { return "google" }

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/auth?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (model.User, error) {
	if f.err != nil {
		return model.User{}, f.err
	}
	return f.user, nil
}

type testEnv struct {
	router   http.Handler
	hub      *realtime.Hub
	repo     *repo.MemoryRepo
	tokens   *auth.Tokens
	provider *fakeProvider
	token    string
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	hub := realtime.NewHub(logger, 16)
	t.Cleanup(hub.Close)

	memRepo := repo.NewMemoryRepo()
	tokens := auth.NewTokens("test-secret", time.Hour)
	provider := &fakeProvider{user: model.User{
		ID:       "google:1",
		Email:    "ada@example.com",
		Metadata: map[string]any{"full_name": "Ada Lovelace"},
	}}

	router := NewRouter(Handlers{
		Tasks:  NewTaskHandler(service.NewTaskService(memRepo, hub, logger), logger),
		Stream: NewStreamHandler(hub, logger),
		Auth:   NewAuthHandler(tokens, "http://localhost:5173", logger, provider),
		Guard:  auth.NewMiddleware(tokens),
	}, logger)

	session, err := tokens.Issue(provider.user)
	require.NoError(t, err)

	return &testEnv{
		router:   router,
		hub:      hub,
		repo:     memRepo,
		tokens:   tokens,
		provider: provider,
		token:    session.AccessToken,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
