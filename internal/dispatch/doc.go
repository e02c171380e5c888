// Package dispatch is the command dispatcher of lockbot.
//
// A gateway decodes each inbound chat update once into a Request carrying a
// typed Interaction (Command, PlainText or ButtonPress) and hands it to
// Dispatcher.Dispatch together with a Sink for the replies. The dispatcher:
//
//   - refuses strangers with one fixed text, whatever they asked for
//   - checks the capability policy before every lock operation
//   - guards the door-open action with a single-use confirmation token
//     and re-checks authorisation when the token is redeemed
//   - drives the admin add-user and permission-editing wizard
//   - calls the lock bridge and renders its verdict in the caller's language
//
// Errors from the bridge or the store never escape Dispatch; they become
// response text and every final response carries the main menu.
//
// # Callback data
//
// Inline buttons carry colon-separated data:
//
//	cmd:<lock|unlock|open|lockngo|status|id>
//	lang:menu            lang:set:<it|en>
//	admin:adduser_help   admin:listusers   admin:back
//	admin:edit:<id>      admin:all:<id>    admin:none:<id>   admin:delete:<id>
//	admin:toggle:<id>:<capability>
//	confirm_open:<token> cancel_open:<token>
//
// ParseButton and ButtonPress.Data convert between the two forms.
//
// # Concurrency
//
// Dispatch serialises calls per identity, so a pending confirmation or an
// admin wizard step can never race with another interaction of the same
// identity. Calls for different identities run in parallel.
package dispatch
