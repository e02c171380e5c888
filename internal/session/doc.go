// Package session tracks the per-identity admin wizard state.
//
// The states are:
//
//	Idle
//	AwaitingNewUserInput   next plain-text message is "<identity> [name]"
//	ViewingUserList        the user list (or a post-delete notice) is shown
//	EditingUser(target)    the permission editor for one user is shown
//
// Only owners may leave Idle. Each identity has exactly one mode, and modes
// are never shared between identities.
package session
