package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/go-training/oauth-loopback/pkg/core"
)

// errNotArray is returned for stored content that is valid JSON but not a list.
var errNotArray = errors.New("account list is not a JSON array")

// decodeEntries splits a stored JSON array into its raw entries.
// Entries are kept verbatim so fields this program does not know survive a rewrite.
func decodeEntries(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '[' && json.Valid(trimmed) {
		return nil, errNotArray
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// appendEntry adds record to entries as a new raw entry.
func appendEntry(entries []json.RawMessage, record core.AccountRecord) ([]json.RawMessage, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return append(entries, data), nil
}

// encodeEntries renders entries as a two-space indented array.
// Existing entries are re-indented, never re-encoded.
func encodeEntries(entries []json.RawMessage) ([]byte, error) {
	if len(entries) == 0 {
		return []byte("[]\n"), nil
	}
	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i, entry := range entries {
		buf.WriteString("  ")
		if err := json.Indent(&buf, entry, "  ", "  "); err != nil {
			return nil, err
		}
		if i < len(entries)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}

// recordsFrom decodes the entries that fit an AccountRecord; the rest are logged and skipped.
func recordsFrom(ctx context.Context, location string, entries []json.RawMessage) []core.AccountRecord {
	records := make([]core.AccountRecord, 0, len(entries))
	for i, entry := range entries {
		var record core.AccountRecord
		if err := json.Unmarshal(entry, &record); err != nil {
			core.LoggerFromCtx(ctx).Warn("Skipping unreadable account entry",
				"location", location,
				"index", i,
				"error", err,
			)
			continue
		}
		records = append(records, record)
	}
	return records
}
