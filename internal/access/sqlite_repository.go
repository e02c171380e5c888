package access

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteRepository stores the user table in the users and
// user_capabilities tables created by the embedded migrations.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Load reads every user and its capabilities. Unknown capabilities are
// dropped and unsupported languages fall back to DefaultLanguage.
func (r *SQLiteRepository) Load(ctx context.Context) (map[Identity]UserRecord, error) {
	users := make(map[Identity]UserRecord)

	rows, err := r.db.QueryContext(ctx, "SELECT identity, name, lang FROM users")
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			u    UserRecord
			lang string
		)
		if err := rows.Scan(&id, &u.Name, &lang); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		u.Identity = Identity(id)
		u.Lang = storedLanguage(lang)
		u.Allowed = []Capability{}
		users[u.Identity] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	capRows, err := r.db.QueryContext(ctx, "SELECT identity, capability FROM user_capabilities")
	if err != nil {
		return nil, fmt.Errorf("querying capabilities: %w", err)
	}
	defer capRows.Close()

	for capRows.Next() {
		var (
			id  int64
			raw string
		)
		if err := capRows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning capability row: %w", err)
		}
		u, ok := users[Identity(id)]
		if !ok {
			continue
		}
		c, ok := ParseCapability(raw)
		if !ok {
			continue
		}
		u.Allowed = append(u.Allowed, c)
		users[u.Identity] = u
	}
	if err := capRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capabilities: %w", err)
	}

	for id, u := range users {
		u.Allowed = NormalizeCapabilities(u.Allowed)
		users[id] = u
	}
	return users, nil
}

// Save replaces both tables inside one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, users map[Identity]UserRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_capabilities"); err != nil {
		return fmt.Errorf("clearing capabilities: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users"); err != nil {
		return fmt.Errorf("clearing users: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for id, u := range users {
		lang := u.Lang
		if lang == "" {
			lang = DefaultLanguage
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO users (identity, name, lang, updated_at) VALUES (?, ?, ?, ?)",
			int64(id), u.Name, string(lang), now,
		); err != nil {
			return fmt.Errorf("inserting user %d: %w", id, err)
		}
		for _, c := range NormalizeCapabilities(u.Allowed) {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO user_capabilities (identity, capability) VALUES (?, ?)",
				int64(id), string(c),
			); err != nil {
				return fmt.Errorf("inserting capability for user %d: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing users: %w", err)
	}
	return nil
}
