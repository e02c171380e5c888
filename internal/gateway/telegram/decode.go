package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nerrad567/lockbot/internal/access"
	"github.com/nerrad567/lockbot/internal/dispatch"
)

// inbound is a decoded update plus what is needed to reply to it.
type inbound struct {
	req dispatch.Request

	chatID int64
	// messageID is the message carrying the pressed button; zero for messages.
	messageID int
	// callbackID must be answered so the client stops its spinner.
	callbackID string
}

// decodeUpdate maps an update to a request. ok is false for updates lockbot
// ignores (edits, channel posts, non-text messages).
func decodeUpdate(u tgbotapi.Update) (in inbound, ok bool) {
	switch {
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		if q.Message == nil || q.Message.Chat == nil {
			return inbound{}, false
		}
		chatID := q.Message.Chat.ID
		updatesTotal.WithLabelValues("callback").Inc()
		return inbound{
			req:        dispatch.NewRequest(access.Identity(chatID), senderOf(q.From), dispatch.ParseButton(q.Data)),
			chatID:     chatID,
			messageID:  q.Message.MessageID,
			callbackID: q.ID,
		}, true

	case u.Message != nil:
		m := u.Message
		if m.Chat == nil || m.Text == "" {
			updatesTotal.WithLabelValues("ignored").Inc()
			return inbound{}, false
		}
		updatesTotal.WithLabelValues("message").Inc()
		return inbound{
			req:    dispatch.NewRequest(access.Identity(m.Chat.ID), senderOf(m.From), dispatch.ParseMessage(m.Text)),
			chatID: m.Chat.ID,
		}, true
	}

	updatesTotal.WithLabelValues("ignored").Inc()
	return inbound{}, false
}

func senderOf(u *tgbotapi.User) dispatch.Sender {
	if u == nil {
		return dispatch.Sender{}
	}
	return dispatch.Sender{
		UserID:       u.ID,
		Username:     u.UserName,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
	}
}

// keyboard converts dispatcher buttons to inline markup. nil means no markup.
func keyboard(rows [][]dispatch.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return &markup
}
