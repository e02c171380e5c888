// Package telegram connects the dispatcher to the Telegram Bot API.
//
// Updates arrive by long polling (Run) or by webhook (WebhookHandler). Each
// update is decoded once into a dispatch.Request: text messages become a
// Command or PlainText, callback queries become a ButtonPress. The identity
// is the chat ID.
//
// Every identity gets its own mailbox, a bounded queue drained by one
// worker goroutine. This keeps interactions of one chat in arrival order
// while different chats proceed in parallel. Idle workers exit after the
// configured idle timeout; a full mailbox drops the update with a warning.
//
// Responses with Replace set edit the message that carried the pressed
// button. When editing fails (for example because the content did not
// change) a new message is sent instead.
package telegram
