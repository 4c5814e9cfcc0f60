package core

import (
	"crypto/subtle"
	"slices"

	"github.com/google/uuid"
)

// AuthSession holds the one-time CSRF token and the requested scopes of a single flow.
type AuthSession struct {
	CSRFToken    string
	Scopes       []string
	ClientID     string
	ClientSecret string
}

// NewAuthSession creates a session with a freshly generated CSRF token.
func NewAuthSession(clientID, clientSecret string, scopes []string) *AuthSession {
	return &AuthSession{
		CSRFToken:    uuid.NewString(),
		Scopes:       slices.Clone(scopes),
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// VerifyState reports whether state matches the session's CSRF token.
func (s *AuthSession) VerifyState(state string) bool {
	if state == "" || s.CSRFToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(state), []byte(s.CSRFToken)) == 1
}

// CallbackResult is produced exactly once from the redirect request.
// Exactly one of Code and Reason is set.
type CallbackResult struct {
	Code   string
	Reason string
}

// CodeResult returns a result carrying an authorization code.
func CodeResult(code string) CallbackResult {
	return CallbackResult{Code: code}
}

// ErrorResult returns a failed result with the given reason.
func ErrorResult(reason string) CallbackResult {
	return CallbackResult{Reason: reason}
}

// HasCode reports whether the result carries an authorization code.
func (r CallbackResult) HasCode() bool {
	return r.Code != ""
}

// TokenResponse is the parsed token endpoint payload.
// Missing fields are left at their zero value.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
	// Extra holds every field of the provider response, including provider-specific ones.
	Extra map[string]any `json:"-"`
}
