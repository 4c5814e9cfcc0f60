package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/go-training/oauth-loopback/pkg/core"
)

// ErrEmptyPath is returned when a file store is created without a path.
var ErrEmptyPath = errors.New("account file path cannot be empty")

// FileStore implements core.CredentialStore on a pretty-printed JSON array.
// The read-modify-write of Append holds an advisory lock on <path>.lock.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore creates a FileStore for path. The file is created on the first Append.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the account file location.
func (f *FileStore) Path() string {
	return f.path
}

// Append adds record to the end of the file, creating the file and its directory as needed.
// Unreadable content is logged and replaced.
func (f *FileStore) Append(ctx context.Context, record core.AccountRecord) error {
	logger := core.LoggerFromCtx(ctx)

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return &core.StoreWriteError{Path: f.path, Err: err}
	}
	if err := f.lock.Lock(); err != nil {
		return &core.StoreWriteError{Path: f.path, Err: fmt.Errorf("lock: %w", err)}
	}
	defer func() {
		if err := f.lock.Unlock(); err != nil {
			logger.Warn("Failed to release account file lock", "path", f.path, "error", err)
		}
	}()

	entries, err := f.read()
	if err != nil {
		logger.Warn("Account file unreadable, starting from an empty list",
			"path", f.path,
			"error", err,
		)
		entries = nil
	}
	entries, err = appendEntry(entries, record)
	if err != nil {
		return &core.StoreWriteError{Path: f.path, Err: err}
	}

	if err := f.write(entries); err != nil {
		return &core.StoreWriteError{Path: f.path, Err: err}
	}
	logger.Info("Account saved", "path", f.path, "accounts", len(entries))
	return nil
}

// List returns the records in file order. A missing file is an empty list;
// content that is not a JSON array yields an empty list and a *core.StoreReadError.
// Entries that do not decode as a record are skipped.
func (f *FileStore) List(ctx context.Context) ([]core.AccountRecord, error) {
	if _, err := os.Stat(filepath.Dir(f.path)); err == nil {
		if err := f.lock.RLock(); err == nil {
			defer f.lock.Unlock()
		}
	}
	entries, err := f.read()
	if err != nil {
		return []core.AccountRecord{}, err
	}
	return recordsFrom(ctx, f.path, entries), nil
}

func (f *FileStore) read() ([]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StoreReadError{Path: f.path, Err: err}
	}
	entries, err := decodeEntries(data)
	if err != nil {
		return nil, &core.StoreReadError{Path: f.path, Err: err}
	}
	return entries, nil
}

// write replaces the file with entries through a temp file in the same directory.
func (f *FileStore) write(entries []json.RawMessage) error {
	data, err := encodeEntries(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return err
	}
	committed = true
	return nil
}

var _ core.CredentialStore = (*FileStore)(nil)

