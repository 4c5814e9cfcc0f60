package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-training/oauth-loopback/pkg/core"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestFileStore_AppendToExistingList(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")
	writeFile(t, path, `[
  {"access_token": "one", "refresh_token": "r1", "expires_in": 3599, "timestamp": 1},
  {"access_token": "two", "expires_in": 3599, "timestamp": 2}
]`)

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	record := core.AccountRecord{AccessToken: "three", RefreshToken: "r3", ExpiresIn: 3599, CapturedAt: 3}
	if err := store.Append(ctx, record); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	if records[0].AccessToken != "one" || records[1].AccessToken != "two" {
		t.Errorf("existing records not preserved in order: %+v", records[:2])
	}
	if records[2] != record {
		t.Errorf("records[2] = %+v, want %+v", records[2], record)
	}
}

func TestFileStore_DuplicatesAreKept(t *testing.T) {
	ctx := context.Background()
	store, _ := NewFileStore(filepath.Join(t.TempDir(), "accounts.json"))
	record := core.AccountRecord{AccessToken: "same", ExpiresIn: 10, CapturedAt: 5}

	for i := 0; i < 2; i++ {
		if err := store.Append(ctx, record); err != nil {
			t.Fatal(err)
		}
	}
	records, _ := store.List(ctx)
	if len(records) != 2 {
		t.Errorf("len(records) = %d, want 2", len(records))
	}
}

func TestFileStore_CorruptFileIsOverwritten(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")
	writeFile(t, path, `[{"access_token": "lost",`)

	store, _ := NewFileStore(path)

	records, err := store.List(ctx)
	var readErr *core.StoreReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("List() error = %v, want *core.StoreReadError", err)
	}
	if len(records) != 0 {
		t.Errorf("corrupt file should list as empty, got %d records", len(records))
	}

	if err := store.Append(ctx, core.AccountRecord{AccessToken: "fresh", CapturedAt: 1}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List() after append error = %v", err)
	}
	if len(records) != 1 || records[0].AccessToken != "fresh" {
		t.Errorf("records = %+v, want exactly the fresh record", records)
	}
}

func TestFileStore_NonArrayIsCorrupt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")
	writeFile(t, path, `{"access_token": "object"}`)

	store, _ := NewFileStore(path)
	var readErr *core.StoreReadError
	if _, err := store.List(ctx); !errors.As(err, &readErr) || !errors.Is(err, errNotArray) {
		t.Fatalf("List() error = %v, want a read error for a JSON object", err)
	}

	if err := store.Append(ctx, core.AccountRecord{AccessToken: "fresh"}); err != nil {
		t.Fatal(err)
	}
	records, err := store.List(ctx)
	if err != nil || len(records) != 1 {
		t.Errorf("List() = %+v, %v; want the fresh record only", records, err)
	}
}

func TestFileStore_CreatesMissingDirectory(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data", "nested")
	path := filepath.Join(dir, "accounts.json")

	store, _ := NewFileStore(path)
	records, err := store.List(ctx)
	if err != nil || len(records) != 0 {
		t.Fatalf("List() on missing file = %v, %v; want empty, nil", records, err)
	}

	if err := store.Append(ctx, core.AccountRecord{AccessToken: "a"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("account file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0o700 {
		t.Errorf("dir mode = %o, want 700", perm)
	}
}

func TestFileStore_PrettyPrinted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")
	store, _ := NewFileStore(path)

	if err := store.Append(ctx, core.AccountRecord{AccessToken: "a", ExpiresIn: 1, CapturedAt: 2}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  {\n    \"access_token\": \"a\"") {
		t.Errorf("file is not indented:\n%s", data)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"access_token", "expires_in", "timestamp"} {
		if _, ok := raw[0][key]; !ok {
			t.Errorf("missing key %q in %v", key, raw[0])
		}
	}
	if _, ok := raw[0]["refresh_token"]; ok {
		t.Error("empty refresh_token should be omitted")
	}
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, _ := NewFileStore(filepath.Join(dir, "accounts.json"))

	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, core.AccountRecord{AccessToken: "a"}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStore_WriteError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	writeFile(t, blocker, "x")

	path := filepath.Join(blocker, "accounts.json")
	store, _ := NewFileStore(path)

	err := store.Append(context.Background(), core.AccountRecord{AccessToken: "a"})
	var writeErr *core.StoreWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("Append() error = %v, want *core.StoreWriteError", err)
	}
	if writeErr.Path != path {
		t.Errorf("Path = %q, want %q", writeErr.Path, path)
	}
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	if _, err := NewFileStore(""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("NewFileStore(\"\") error = %v, want ErrEmptyPath", err)
	}
}

func TestFileStore_AppendKeepsUnknownFields(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")
	writeFile(t, path, `[{"access_token":"a","refresh_token":"r","expires_in":3599,"timestamp":1,"enable":false,"projectId":"p-1"}]`)

	store, _ := NewFileStore(path)
	if err := store.Append(ctx, core.AccountRecord{AccessToken: "b", CapturedAt: 2}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("file is not a JSON array: %v\n%s", err, data)
	}
	if len(raw) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(raw))
	}
	if raw[0]["enable"] != false || raw[0]["projectId"] != "p-1" {
		t.Errorf("existing entry changed: %v", raw[0])
	}
	if raw[1]["access_token"] != "b" {
		t.Errorf("new entry = %v", raw[1])
	}
	if !strings.Contains(string(data), "\n    \"projectId\": \"p-1\"") {
		t.Errorf("existing entry not re-indented:\n%s", data)
	}
}

func TestFileStore_MismatchedEntryDoesNotWipeFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")
	writeFile(t, path, `[
  {"access_token": "one", "expires_in": 3599, "timestamp": 1},
  {"access_token": "two", "expires_in": "3599", "timestamp": 2}
]`)

	store, _ := NewFileStore(path)
	if err := store.Append(ctx, core.AccountRecord{AccessToken: "three", CapturedAt: 3}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 3 {
		t.Fatalf("len(entries) = %d, want 3:\n%s", len(raw), data)
	}
	if raw[1]["expires_in"] != "3599" {
		t.Errorf("mismatched entry rewritten: %v", raw[1])
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 || records[0].AccessToken != "one" || records[1].AccessToken != "three" {
		t.Errorf("records = %+v, want one and three", records)
	}
}
