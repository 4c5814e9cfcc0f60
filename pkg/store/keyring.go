package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/zalando/go-keyring"

	"github.com/go-training/oauth-loopback/pkg/core"
)

const (
	// DefaultKeyringService is the keyring service name for the account list.
	DefaultKeyringService = "oauth-login"
	// DefaultKeyringUser is the keyring entry holding the account list.
	DefaultKeyringUser = "accounts"
)

// KeyringOptions selects the keyring entry.
type KeyringOptions struct {
	Service string
	User    string
}

// KeyringStore implements core.CredentialStore as one JSON array secret in the OS keyring.
type KeyringStore struct {
	service string
	user    string
}

// NewKeyringStore creates a KeyringStore, filling in default service and user names.
func NewKeyringStore(opts KeyringOptions) *KeyringStore {
	if opts.Service == "" {
		opts.Service = DefaultKeyringService
	}
	if opts.User == "" {
		opts.User = DefaultKeyringUser
	}
	return &KeyringStore{service: opts.Service, user: opts.User}
}

// Append adds record to the stored list. Unreadable content is logged and replaced.
func (k *KeyringStore) Append(ctx context.Context, record core.AccountRecord) error {
	logger := core.LoggerFromCtx(ctx)

	entries, err := k.read()
	if err != nil {
		logger.Warn("Keyring account list unreadable, starting from an empty list",
			"service", k.service,
			"error", err,
		)
		entries = nil
	}
	entries, err = appendEntry(entries, record)
	if err != nil {
		return &core.StoreWriteError{Path: k.location(), Err: err}
	}

	data, err := encodeEntries(entries)
	if err != nil {
		return &core.StoreWriteError{Path: k.location(), Err: err}
	}
	if err := keyring.Set(k.service, k.user, string(data)); err != nil {
		return &core.StoreWriteError{Path: k.location(), Err: err}
	}
	logger.Info("Account saved", "service", k.service, "accounts", len(entries))
	return nil
}

// List returns the stored records; a missing entry is an empty list.
// Entries that do not decode as a record are skipped.
func (k *KeyringStore) List(ctx context.Context) ([]core.AccountRecord, error) {
	entries, err := k.read()
	if err != nil {
		return []core.AccountRecord{}, err
	}
	return recordsFrom(ctx, k.location(), entries), nil
}

func (k *KeyringStore) read() ([]json.RawMessage, error) {
	secret, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StoreReadError{Path: k.location(), Err: err}
	}
	entries, err := decodeEntries([]byte(secret))
	if err != nil {
		return nil, &core.StoreReadError{Path: k.location(), Err: err}
	}
	return entries, nil
}

func (k *KeyringStore) location() string {
	return "keyring:" + k.service + "/" + k.user
}
