package shell

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

type MockAuth struct {
	mock.Mock
	listener func(model.AuthEvent, *model.Session)
	removed  bool
}

func (m *MockAuth) Session(ctx context.Context) (*model.Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*model.Session)
	return s, args.Error(1)
}

func (m *MockAuth) SetSession(ctx context.Context, token string) (*model.Session, error) {
	args := m.Called(ctx, token)
	s, _ := args.Get(0).(*model.Session)
	if s != nil && m.listener != nil {
		m.listener(model.AuthSignedIn, s)
	}
	return s, args.Error(1)
}

func (m *MockAuth) OnAuthStateChange(fn func(model.AuthEvent, *model.Session)) func() {
	m.listener = fn
	return func() { m.removed = true }
}

func (m *MockAuth) SignInURL(provider, redirectTo string) string {
	return m.Called(provider, redirectTo).String(0)
}

func (m *MockAuth) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func session(name string) *model.Session {
	return &model.Session{
		AccessToken: "tok",
		User:        model.User{ID: "u1", Email: "ada@example.com", Metadata: map[string]any{"full_name": name}},
	}
}

func TestApp_InitialPage(t *testing.T) {
	tests := []struct {
		path string
		want Page
	}{
		{"/", PageLanding},
		{"", PageLanding},
		{"/auth/callback", PageCallback},
		{"/auth/callback#access_token=x", PageCallback},
		{"/board", PageLanding},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, New(new(MockAuth), "", tt.path, zap.NewNop()).Page())
		})
	}
}

func TestApp_StartWithSession(t *testing.T) {
	auth := new(MockAuth)
	auth.On("Session", mock.Anything).Return(session("Ada Lovelace"), nil)

	app := New(auth, "http://localhost:5173", "/", zap.NewNop())
	require.NoError(t, app.Start(context.Background()))

	assert.Equal(t, PageBoard, app.Page())
	assert.Equal(t, "Ada Lovelace", app.DisplayName())

	app.Stop()
	assert.True(t, auth.removed)
}

func TestApp_StartWithSessionOnCallbackPage(t *testing.T) {
	auth := new(MockAuth)
	auth.On("Session", mock.Anything).Return(session("Ada Lovelace"), nil)
	auth.On("SetSession", mock.Anything, "fresh").Return(session("Ada Lovelace"), nil)

	app := New(auth, "http://localhost:5173", "/auth/callback", zap.NewNop())
	require.NoError(t, app.Start(context.Background()))

	assert.Equal(t, PageCallback, app.Page())
	assert.Equal(t, "Ada Lovelace", app.DisplayName())

	require.NoError(t, app.CompleteSignIn(context.Background(), "fresh"))
	assert.Equal(t, PageBoard, app.Page())
}

func TestApp_StartWithoutSession(t *testing.T) {
	auth := new(MockAuth)
	auth.On("Session", mock.Anything).Return(nil, nil)

	app := New(auth, "", "/", zap.NewNop())
	require.NoError(t, app.Start(context.Background()))

	assert.Equal(t, PageLanding, app.Page())
	assert.Nil(t, app.User())
	assert.Equal(t, "Member", app.DisplayName())

	auth.listener(model.AuthSignedIn, session("Grace"))
	assert.Equal(t, PageBoard, app.Page())
	assert.Equal(t, "Grace", app.DisplayName())

	auth.listener(model.AuthSignedOut, nil)
	assert.Equal(t, PageLanding, app.Page())
	assert.Nil(t, app.User())
}

func TestApp_SessionErrorStaysOnLanding(t *testing.T) {
	auth := new(MockAuth)
	auth.On("Session", mock.Anything).Return(nil, errors.New("offline"))

	app := New(auth, "", "/", zap.NewNop())
	err := app.Start(context.Background())

	assert.Error(t, err)
	assert.Equal(t, PageLanding, app.Page())
	assert.NotNil(t, auth.listener, "still follows auth changes")
}

func TestApp_SignInWithGoogle(t *testing.T) {
	auth := new(MockAuth)
	auth.On("SignInURL", "google", "https://board.example.com/auth/callback").Return("https://api/auth/login").Once()

	app := New(auth, "https://board.example.com/", "/", zap.NewNop())

	assert.Equal(t, "https://api/auth/login", app.SignInWithGoogle())
	auth.AssertExpectations(t)
}

func TestApp_CompleteSignIn(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		auth := new(MockAuth)
		auth.On("Session", mock.Anything).Return(nil, nil)
		auth.On("SetSession", mock.Anything, "tok").Return(session("Ada"), nil)

		app := New(auth, "", "/auth/callback", zap.NewNop())
		require.NoError(t, app.Start(context.Background()))
		assert.Equal(t, PageCallback, app.Page())

		require.NoError(t, app.CompleteSignIn(context.Background(), " tok \n"))
		assert.Equal(t, PageBoard, app.Page())
	})

	t.Run("rejected", func(t *testing.T) {
		auth := new(MockAuth)
		auth.On("Session", mock.Anything).Return(nil, nil)
		auth.On("SetSession", mock.Anything, "bad").Return(nil, errors.New("token rejected"))

		app := New(auth, "", "/auth/callback", zap.NewNop())
		require.NoError(t, app.Start(context.Background()))

		assert.Error(t, app.CompleteSignIn(context.Background(), "bad"))
		assert.Equal(t, PageLanding, app.Page())
	})
}

func TestApp_SignOut(t *testing.T) {
	auth := new(MockAuth)
	auth.On("Session", mock.Anything).Return(session("Ada"), nil)
	auth.On("SignOut", mock.Anything).Return(errors.New("offline")).Once()

	app := New(auth, "", "/", zap.NewNop())
	require.NoError(t, app.Start(context.Background()))

	changed := 0
	app.OnChange(func() { changed++ })

	assert.Error(t, app.SignOut(context.Background()))
	assert.Equal(t, PageLanding, app.Page())
	assert.Nil(t, app.User())
	assert.Equal(t, 1, changed)
}
