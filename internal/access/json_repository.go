package access

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// usersFilePermissions restricts the user table to the bot's own account.
const usersFilePermissions = 0600

// usersFile is the on-disk layout: {"users": {"<id>": {...}}}.
type usersFile struct {
	Users map[string]json.RawMessage `json:"users"`
}

// userEntry is one persisted record. Allowed is decoded leniently so a
// malformed list does not discard the whole user.
type userEntry struct {
	Name    string          `json:"name"`
	Allowed json.RawMessage `json:"allowed"`
	Lang    string          `json:"lang"`
}

// savedEntry is the canonical form written back to disk.
type savedEntry struct {
	Name    string       `json:"name"`
	Allowed []Capability `json:"allowed"`
	Lang    Language     `json:"lang"`
}

// JSONFileRepository stores the user table in a single JSON file.
//
// Writes go to "<path>.tmp" and are renamed over the target, so a crash
// mid-write leaves either the previous file or the new one.
type JSONFileRepository struct {
	path   string
	mu     sync.Mutex
	logger Logger
}

// NewJSONFileRepository creates a repository backed by path.
func NewJSONFileRepository(path string) *JSONFileRepository {
	return &JSONFileRepository{path: path, logger: noopLogger{}}
}

// SetLogger sets the logger used for skipped-entry warnings.
func (r *JSONFileRepository) SetLogger(logger Logger) {
	r.logger = logger
}

// Path returns the backing file path.
func (r *JSONFileRepository) Path() string {
	return r.path
}

// Load reads the user table. A missing file yields an empty table.
//
// Entries with a non-integer key or a non-object value are skipped with a
// warning. Unknown capability strings are dropped. A missing, empty or
// unsupported language falls back to DefaultLanguage.
func (r *JSONFileRepository) Load(_ context.Context) (map[Identity]UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make(map[Identity]UserRecord)

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Warn("users file not found, starting with empty user list", "path", r.path)
		return users, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return users, nil
	}

	var file usersFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing users file: %w", err)
	}

	for key, raw := range file.Users {
		id, err := ParseIdentity(key)
		if err != nil {
			r.logger.Warn("ignoring invalid user key", "key", key)
			continue
		}

		var entry userEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			r.logger.Warn("ignoring invalid user entry", "identity", id, "error", err)
			continue
		}

		users[id] = UserRecord{
			Identity: id,
			Name:     entry.Name,
			Allowed:  decodeAllowed(entry.Allowed),
			Lang:     storedLanguage(entry.Lang),
		}
	}

	return users, nil
}

// decodeAllowed keeps the string members of a JSON array that name a known
// capability. Anything that is not an array yields an empty set.
func decodeAllowed(raw json.RawMessage) []Capability {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return []Capability{}
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return NormalizeCapabilities(values)
}

// Save writes the whole table atomically.
func (r *JSONFileRepository) Save(_ context.Context, users map[Identity]UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := struct {
		Users map[string]savedEntry `json:"users"`
	}{Users: make(map[string]savedEntry, len(users))}

	for id, u := range users {
		lang := u.Lang
		if lang == "" {
			lang = DefaultLanguage
		}
		out.Users[id.String()] = savedEntry{
			Name:    u.Name,
			Allowed: NormalizeCapabilities(u.Allowed),
			Lang:    lang,
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding users: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("creating users directory: %w", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), usersFilePermissions); err != nil {
		return fmt.Errorf("writing users file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp) //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("replacing users file: %w", err)
	}
	return nil
}
