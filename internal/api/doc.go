// Package api implements the operational HTTP surface of lockbot.
//
// This package provides:
//   - Liveness and component health at /api/v1/health
//   - Aggregate counters at /api/v1/status (no identities, no names)
//   - Prometheus metrics at /metrics
//   - The Telegram webhook route when the gateway runs in webhook mode
//   - Middleware stack (request ID, logging, recovery, metrics, body limit)
//
// # Privacy
//
// Nothing served here names a chat identity. The status endpoint reports
// counts only; per-user data stays inside the chat interface where the
// capability policy applies.
//
// # Graceful Degradation
//
// The server runs without MQTT or InfluxDB. Their health checks are only
// registered when the components are enabled.
package api
