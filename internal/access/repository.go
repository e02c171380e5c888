package access

import "context"

// Repository persists the whole user table.
//
// Load returns an empty map (not an error) when nothing has been stored yet.
// Save replaces the stored table atomically: a concurrent or later Load sees
// either the old table or the new one, never a mix.
type Repository interface {
	Load(ctx context.Context) (map[Identity]UserRecord, error)
	Save(ctx context.Context, users map[Identity]UserRecord) error
}
