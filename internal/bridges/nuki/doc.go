// Package nuki is the HTTP client for the Nuki Bridge local API.
//
// Only the two endpoints lockbot needs are implemented:
//
//   - GET /lockAction performs an action (unlock, lock, unlatch, lock'n'go)
//   - GET /lockState reads the current lock, door and battery state
//
// Responses are decoded into typed results immediately after the call.
// Transport failures, timeouts, non-2xx statuses and undecodable bodies are
// returned as errors wrapping one of the sentinels in errors.go. Calls are
// never retried: repeating an unlatch is not safe.
//
// The bridge token travels as a query parameter. Errors returned from this
// package never include the request URL, so they are safe to log and to show
// to chat users.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package nuki
