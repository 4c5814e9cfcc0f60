package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-training/oauth-loopback/pkg/core"
)

// StoreType represents the type of store backend.
type StoreType string

const (
	// StoreTypeFile represents the JSON account file.
	StoreTypeFile StoreType = "file"
	// StoreTypeMemory represents in-memory storage.
	StoreTypeMemory StoreType = "memory"
	// StoreTypeRedis represents Redis storage.
	StoreTypeRedis StoreType = "redis"
	// StoreTypeKeyring represents the operating system keyring.
	StoreTypeKeyring StoreType = "keyring"
)

// Config contains configuration for creating a store.
type Config struct {
	// Type specifies the store type.
	Type StoreType
	// Path is the account file used by the file store.
	Path string
	// Redis contains Redis-specific configuration.
	Redis RedisOptions
	// Keyring contains keyring-specific configuration.
	Keyring KeyringOptions
}

// Factory creates store instances based on configuration.
type Factory struct {
	config Config
}

// NewFactory creates a new store factory with the provided configuration.
func NewFactory(config Config) *Factory {
	return &Factory{
		config: config,
	}
}

// Create creates and returns a new store instance based on the factory configuration.
func (f *Factory) Create() (core.CredentialStore, error) {
	switch f.config.Type {
	case StoreTypeFile:
		return NewFileStore(f.config.Path)
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	case StoreTypeRedis:
		return NewRedisStoreFromOptions(f.config.Redis)
	case StoreTypeKeyring:
		return NewKeyringStore(f.config.Keyring), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", f.config.Type)
	}
}

// NewStore is a convenience function that creates a store directly from configuration.
// It's equivalent to NewFactory(config).Create().
func NewStore(config Config) (core.CredentialStore, error) {
	return NewFactory(config).Create()
}

// ErrUnknownStoreType is returned by ParseStoreType for unrecognized names.
var ErrUnknownStoreType = errors.New("unknown store type")

// ParseStoreType parses a string into a StoreType.
// An empty string selects StoreTypeFile.
func ParseStoreType(s string) (StoreType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return StoreTypeFile, nil
	}
	t := StoreType(name)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStoreType, s)
	}
	return t, nil
}

// String returns the string representation of a StoreType.
func (t StoreType) String() string {
	return string(t)
}

// IsValid returns true if the StoreType is valid.
func (t StoreType) IsValid() bool {
	switch t {
	case StoreTypeFile, StoreTypeMemory, StoreTypeRedis, StoreTypeKeyring:
		return true
	default:
		return false
	}
}

// Close releases backend resources for stores that hold any.
func Close(s core.CredentialStore) {
	if c, ok := s.(interface{ Close() }); ok {
		c.Close()
	}
}
