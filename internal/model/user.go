package model

import "time"

type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// DisplayName picks the friendliest name the identity provider gave us.
func (u User) DisplayName() string {
	for _, key := range []string{"full_name", "name", "user_name"} {
		if v, ok := u.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	if u.Email != "" {
		return u.Email
	}
	return "Member"
}

type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

type AuthEvent string

const (
	AuthSignedIn  AuthEvent = "SIGNED_IN"
	AuthSignedOut AuthEvent = "SIGNED_OUT"
)
