// Package access owns who may operate the lock.
//
// It holds the permission store (identity to name, capability set and
// language), the configured owner set, and the capability policy that
// answers "may this identity do that".
//
// Owners are a role, not a stored capability set: an owner is authorised for
// every capability and for user administration without having a record.
// Every other identity is authorised only for the capabilities in its
// UserRecord. An identity that is neither an owner nor has a record is a
// stranger and is refused everything.
//
// Persistence is pluggable through Repository. Two implementations exist:
//   - JSONFileRepository: a single users.json file replaced atomically
//   - SQLiteRepository: the users tables created by the embedded migrations
//
// Every mutation is flushed to the repository before it returns.
package access
