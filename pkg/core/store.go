package core

import "context"

// AccountRecord is the persisted unit of one successful flow.
// Records are append-only: they are never mutated or deduplicated.
type AccountRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	// CapturedAt is the capture time in epoch milliseconds.
	CapturedAt int64 `json:"timestamp"`
}

// NewAccountRecord builds the record persisted for a token response captured at capturedAtMs.
func NewAccountRecord(token *TokenResponse, capturedAtMs int64) AccountRecord {
	return AccountRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    token.ExpiresIn,
		CapturedAt:   capturedAtMs,
	}
}

// CredentialStore defines the interface for persisting the ordered account list.
type CredentialStore interface {
	// Append adds one record at the end of the list.
	// Terminal I/O failures are reported as *StoreWriteError.
	Append(ctx context.Context, record AccountRecord) error
	// List returns every stored record in insertion order.
	List(ctx context.Context) ([]AccountRecord, error)
}
