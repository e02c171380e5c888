// Package confirm issues and checks single-use tokens that gate the
// irreversible "open door" action.
//
// Each identity has at most one pending token. Issuing a new one replaces the
// previous token, and resolving a token clears it whatever the outcome, so a
// duplicated or delayed button callback can never be replayed. Tokens are
// only compared against the requesting identity's own pending value; a token
// leaked to another chat is worthless there.
//
// An optional TTL bounds how long a pending token stays valid.
package confirm
