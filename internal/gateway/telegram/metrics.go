package telegram

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway metrics.
var (
	// updatesTotal counts received updates by type.
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockbot_telegram_updates_total",
			Help: "Telegram updates received, by type",
		},
		[]string{"type"},
	)

	// updatesDropped counts updates dropped because a mailbox was full or closed.
	updatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lockbot_telegram_updates_dropped_total",
			Help: "Telegram updates dropped before dispatch",
		},
	)

	// webhookRejected counts webhook requests without the registered secret.
	webhookRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lockbot_telegram_webhook_rejected_total",
			Help: "Webhook requests rejected for a missing or wrong secret token",
		},
	)

	// activeMailboxes tracks live per-chat workers.
	activeMailboxes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lockbot_telegram_active_workers",
			Help: "Per-chat workers currently running",
		},
	)

	// sendErrors counts failed outbound API calls.
	sendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockbot_telegram_send_errors_total",
			Help: "Failed Telegram API calls, by method",
		},
		[]string{"method"},
	)
)
