package access

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Logger defines the logging interface used by the store and repositories.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the permission store: the in-memory user table plus the owner set.
//
// Reads are served from memory. Every mutation updates memory and then
// flushes the full table to the Repository while still holding the write
// lock, so a reader never observes a state older than the last flush
// attempt. A failed flush is reported as ErrPersist but the in-memory
// change is kept.
//
// Records handed out are copies; callers can modify them freely.
//
// All public methods are thread-safe.
type Store struct {
	repo   Repository
	owners map[Identity]struct{}

	mu          sync.RWMutex
	users       map[Identity]UserRecord
	defaultLang Language
	logger      Logger
}

// NewStore creates a store over repo with the given owner identities.
// Call Load before serving requests.
func NewStore(repo Repository, owners []Identity) *Store {
	s := &Store{
		repo:        repo,
		owners:      make(map[Identity]struct{}, len(owners)),
		users:       make(map[Identity]UserRecord),
		defaultLang: DefaultLanguage,
		logger:      noopLogger{},
	}
	for _, id := range owners {
		s.owners[id] = struct{}{}
	}
	return s
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetDefaultLanguage changes the language used for identities without a
// stored preference and for records created by Upsert.
func (s *Store) SetDefaultLanguage(lang Language) error {
	if _, ok := ParseLanguage(string(lang)); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}
	s.mu.Lock()
	s.defaultLang = lang
	s.mu.Unlock()
	return nil
}

// Load replaces the in-memory table with the repository contents.
//
// On failure the table is left empty and the error is returned so the caller
// can log it; the store remains usable (owners still work).
func (s *Store) Load(ctx context.Context) error {
	users, err := s.repo.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.users = make(map[Identity]UserRecord)
		return fmt.Errorf("loading users: %w", err)
	}

	s.users = make(map[Identity]UserRecord, len(users))
	for id, u := range users {
		u.Identity = id
		u.Allowed = NormalizeCapabilities(u.Allowed)
		if u.Lang == "" {
			u.Lang = s.defaultLang
		}
		s.users[id] = u
	}

	s.logger.Info("users loaded", "count", len(s.users))
	return nil
}

// IsOwner reports whether id is in the configured owner set.
func (s *Store) IsOwner(id Identity) bool {
	_, ok := s.owners[id]
	return ok
}

// OwnerCount returns the number of configured owners.
func (s *Store) OwnerCount() int {
	return len(s.owners)
}

// Lookup returns the record for id.
func (s *Store) Lookup(id Identity) (UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return UserRecord{}, false
	}
	return u.Clone(), true
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// List returns every record sorted by lower-cased name, then identity.
func (s *Store) List() []UserRecord {
	s.mu.RLock()
	out := make([]UserRecord, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b UserRecord) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.Identity, b.Identity)
	})
	return out
}

// Language returns the stored language for id, or the default language.
func (s *Store) Language(id Identity) Language {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[id]; ok && u.Lang != "" {
		return u.Lang
	}
	return s.defaultLang
}

// Upsert creates or replaces the name and capability set of id.
// An existing language preference is preserved.
//
// Parameters:
//   - ctx: Context passed to the repository save
//   - id: Identity to create or replace
//   - name: Display name, stored as given
//   - allowed: Capability set; duplicates are removed and order normalised
//
// Returns:
//   - error: ErrPersist when the save failed; the in-memory change is kept
func (s *Store) Upsert(ctx context.Context, id Identity, name string, allowed []Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		u = UserRecord{Identity: id, Lang: s.defaultLang}
	}
	u.Name = name
	u.Allowed = NormalizeCapabilities(allowed)
	s.users[id] = u

	return s.flushLocked(ctx)
}

// Delete removes the record for id and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)

	return true, s.flushLocked(ctx)
}

// SetCapability grants or revokes one capability.
// It returns false when id has no record. Setting a capability to its
// current value is not written.
func (s *Store) SetCapability(ctx context.Context, id Identity, c Capability, enabled bool) (bool, error) {
	if _, ok := ParseCapability(string(c)); !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidCapability, c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	if u.Has(c) == enabled {
		return true, nil
	}

	s.users[id] = withCapability(u, c, enabled)
	return true, s.flushLocked(ctx)
}

// ToggleCapability flips one capability and returns the new state.
// ErrUserNotFound is returned when id has no record.
func (s *Store) ToggleCapability(ctx context.Context, id Identity, c Capability) (bool, error) {
	if _, ok := ParseCapability(string(c)); !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidCapability, c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, ErrUserNotFound
	}
	enabled := !u.Has(c)
	s.users[id] = withCapability(u, c, enabled)

	return enabled, s.flushLocked(ctx)
}

// SetAllCapabilities grants every capability (grantAll) or revokes them all.
//
// Parameters:
//   - ctx: Context passed to the repository save
//   - id: Identity whose record is changed
//   - grantAll: true grants every capability, false revokes them all
//
// Returns:
//   - bool: false, without writing, when the record is already in the target
//     state or does not exist
//   - error: ErrPersist when the save failed; the in-memory change is kept
func (s *Store) SetAllCapabilities(ctx context.Context, id Identity, grantAll bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, nil
	}

	target := []Capability{}
	if grantAll {
		target = slices.Clone(AllCapabilities)
	}
	if slices.Equal(u.Allowed, target) {
		return false, nil
	}

	u.Allowed = target
	s.users[id] = u
	return true, s.flushLocked(ctx)
}

// SetLanguage stores the language preference of id.
// A record with an empty name and no capabilities is created when id has none.
func (s *Store) SetLanguage(ctx context.Context, id Identity, lang Language) error {
	if _, ok := ParseLanguage(string(lang)); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		u = UserRecord{Identity: id, Allowed: []Capability{}}
	}
	if ok && u.Lang == lang {
		return nil
	}
	u.Lang = lang
	s.users[id] = u

	return s.flushLocked(ctx)
}

// flushLocked writes the full table. Caller must hold s.mu.
func (s *Store) flushLocked(ctx context.Context) error {
	snapshot := make(map[Identity]UserRecord, len(s.users))
	for id, u := range s.users {
		snapshot[id] = u.Clone()
	}

	if err := s.repo.Save(ctx, snapshot); err != nil {
		s.logger.Error("saving users failed; in-memory change kept", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// withCapability returns u with c granted or revoked, in display order.
func withCapability(u UserRecord, c Capability, enabled bool) UserRecord {
	next := make([]Capability, 0, len(AllCapabilities))
	for _, existing := range u.Allowed {
		if existing != c {
			next = append(next, existing)
		}
	}
	if enabled {
		next = append(next, c)
	}
	u.Allowed = NormalizeCapabilities(next)
	return u
}
