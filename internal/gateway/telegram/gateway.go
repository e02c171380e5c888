package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nerrad567/lockbot/internal/access"
	"github.com/nerrad567/lockbot/internal/dispatch"
	"github.com/nerrad567/lockbot/internal/infrastructure/config"
)

// Default worker settings.
const (
	DefaultQueueSize     = 16
	DefaultIdleTimeout   = 5 * time.Minute
	DefaultHandleTimeout = 30 * time.Second
)

// maxWebhookBody caps webhook request bodies.
const maxWebhookBody = 1 << 20

// secretTokenHeader carries the setWebhook secret_token on every delivery.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// ErrNoWebhookSecret is returned by RegisterWebhook without a secret token.
var ErrNoWebhookSecret = errors.New("telegram: webhook secret token is required")

// ErrClosed is returned when the gateway no longer accepts updates.
var ErrClosed = errors.New("telegram: gateway closed")

// Bot is the subset of *tgbotapi.BotAPI the gateway uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// Dispatcher handles decoded requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request, sink dispatch.Sink) error
}

// Logger defines the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Gateway. Zero values select the defaults.
type Options struct {
	QueueSize     int
	IdleTimeout   time.Duration
	HandleTimeout time.Duration
	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int
	// WebhookSecret must match the secret token header of webhook requests.
	// With no secret every webhook request is rejected.
	WebhookSecret string
}

// OptionsFromConfig builds Options from the configuration sections.
func OptionsFromConfig(tg config.TelegramConfig, workers config.WorkersConfig) Options {
	return Options{
		QueueSize:     workers.QueueSize,
		IdleTimeout:   workers.IdleTimeout,
		PollTimeout:   tg.PollTimeout,
		WebhookSecret: tg.Webhook.SecretToken,
	}
}

// mailbox is the queue of one identity.
type mailbox struct {
	jobs chan inbound
}

// Gateway feeds Telegram updates to a Dispatcher and delivers its responses.
type Gateway struct {
	bot        Bot
	dispatcher Dispatcher
	opts       Options
	logger     Logger

	mu        sync.Mutex
	mailboxes map[access.Identity]*mailbox
	closed    bool
	wg        sync.WaitGroup
}

// New creates a gateway.
func New(bot Bot, d Dispatcher, opts Options) *Gateway {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = DefaultHandleTimeout
	}
	return &Gateway{
		bot:        bot,
		dispatcher: d,
		opts:       opts,
		logger:     noopLogger{},
		mailboxes:  make(map[access.Identity]*mailbox),
	}
}

// SetLogger sets the logger for the gateway.
func (g *Gateway) SetLogger(logger Logger) {
	g.logger = logger
}

// NewBot creates a Bot API client and checks the token with getMe.
func NewBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		// The client error can echo the request URL, which embeds the token.
		return nil, fmt.Errorf("connecting to telegram: %s", redact(err.Error(), cfg.Token))
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

// SetLibraryLogger routes the Bot API library's own log output to logger.
func SetLibraryLogger(logger Logger, token string) {
	_ = tgbotapi.SetLogger(libraryLogger{logger: logger, token: token}) //nolint:errcheck // only fails for nil
}

// libraryLogger adapts Logger to tgbotapi.BotLogger.
type libraryLogger struct {
	logger Logger
	token  string
}

func (l libraryLogger) Println(v ...any) {
	l.logger.Debug(redact(strings.TrimSpace(fmt.Sprintln(v...)), l.token))
}

func (l libraryLogger) Printf(format string, v ...any) {
	l.logger.Debug(redact(fmt.Sprintf(format, v...), l.token))
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<redacted>")
}

// Run receives updates by long polling until ctx is cancelled.
// Any registered webhook is removed first; Telegram refuses getUpdates otherwise.
func (g *Gateway) Run(ctx context.Context) error {
	if _, err := g.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("removing webhook before polling: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = g.opts.PollTimeout
	updates := g.bot.GetUpdatesChan(u)
	g.logger.Info("telegram polling started", "timeout_seconds", u.Timeout)

	for {
		select {
		case <-ctx.Done():
			g.bot.StopReceivingUpdates()
			g.logger.Info("telegram polling stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if err := g.HandleUpdate(upd); err != nil && !errors.Is(err, ErrClosed) {
				g.logger.Warn("update not handled", "update_id", upd.UpdateID, "error", err)
			}
		}
	}
}

// RegisterWebhook points Telegram at url with the configured secret token.
//
// The library's WebhookConfig has no secret_token field, so setWebhook is
// called with explicit parameters.
func (g *Gateway) RegisterWebhook(url string) error {
	if g.opts.WebhookSecret == "" {
		return ErrNoWebhookSecret
	}
	params := tgbotapi.Params{
		"url":          url,
		"secret_token": g.opts.WebhookSecret,
	}
	if _, err := g.bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("registering webhook: %w", err)
	}
	g.logger.Info("telegram webhook registered")
	return nil
}

// WebhookHandler returns the HTTP handler Telegram posts updates to.
//
// Requests whose secret token header does not match Options.WebhookSecret
// are rejected with 401 before the body is read. An empty secret rejects
// every request.
// Accepted requests always get 200 once the body is decoded so Telegram does
// not redeliver updates the gateway chose to drop.
func (g *Gateway) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !g.validSecret(r.Header.Get(secretTokenHeader)) {
			webhookRejected.Inc()
			g.logger.Warn("webhook request rejected: bad secret token", "remote", r.RemoteAddr)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var upd tgbotapi.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&upd); err != nil {
			g.logger.Warn("invalid webhook body", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := g.HandleUpdate(upd); err != nil && !errors.Is(err, ErrClosed) {
			g.logger.Warn("update not handled", "update_id", upd.UpdateID, "error", err)
		}
		w.WriteHeader(http.StatusOK)
	})
}

// validSecret compares got with the configured secret in constant time.
func (g *Gateway) validSecret(got string) bool {
	want := g.opts.WebhookSecret
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// HandleUpdate decodes one update and queues it on its identity's mailbox.
func (g *Gateway) HandleUpdate(upd tgbotapi.Update) error {
	in, ok := decodeUpdate(upd)
	if !ok {
		return nil
	}

	if in.callbackID != "" {
		// Answer at once; the reply itself may wait on the lock bridge.
		if _, err := g.bot.Request(tgbotapi.NewCallback(in.callbackID, "")); err != nil {
			sendErrors.WithLabelValues("answerCallbackQuery").Inc()
			g.logger.Debug("answering callback failed", "error", err)
		}
	}

	return g.enqueue(in)
}

func (g *Gateway) enqueue(in inbound) error {
	id := in.req.Identity

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		updatesDropped.Inc()
		return ErrClosed
	}

	mb, ok := g.mailboxes[id]
	if !ok {
		mb = &mailbox{jobs: make(chan inbound, g.opts.QueueSize)}
		g.mailboxes[id] = mb
		g.wg.Add(1)
		activeMailboxes.Inc()
		go g.work(id, mb)
	}

	select {
	case mb.jobs <- in:
		return nil
	default:
		updatesDropped.Inc()
		return fmt.Errorf("telegram: mailbox full for chat %d", id)
	}
}

// work drains one mailbox. It exits when the mailbox is closed or has been
// idle for IdleTimeout.
func (g *Gateway) work(id access.Identity, mb *mailbox) {
	defer g.wg.Done()
	defer activeMailboxes.Dec()

	idle := time.NewTimer(g.opts.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case in, ok := <-mb.jobs:
			if !ok {
				return
			}
			g.handle(in)
			idle.Reset(g.opts.IdleTimeout)

		case <-idle.C:
			// enqueue holds g.mu while sending, so an empty queue seen here
			// cannot receive a job after the mailbox is removed.
			g.mu.Lock()
			if len(mb.jobs) == 0 && g.mailboxes[id] == mb {
				delete(g.mailboxes, id)
				g.mu.Unlock()
				return
			}
			g.mu.Unlock()
			idle.Reset(g.opts.IdleTimeout)
		}
	}
}

func (g *Gateway) handle(in inbound) {
	// Detached from the receive loop so shutdown drains queued work.
	ctx, cancel := context.WithTimeout(context.Background(), g.opts.HandleTimeout)
	defer cancel()

	sink := &chatSink{bot: g.bot, chatID: in.chatID, messageID: in.messageID, logger: g.logger}
	if err := g.dispatcher.Dispatch(ctx, in.req, sink); err != nil {
		g.logger.Warn("dispatch finished with errors", "request_id", in.req.ID, "error", err)
	}
}

// Workers returns the number of live per-identity workers.
func (g *Gateway) Workers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.mailboxes)
}

// Close stops accepting updates and waits for queued interactions to finish
// or ctx to expire.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		for id, mb := range g.mailboxes {
			close(mb.jobs)
			delete(g.mailboxes, id)
		}
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for telegram workers: %w", ctx.Err())
	}
}

// chatSink delivers responses to one chat.
type chatSink struct {
	bot       Bot
	chatID    int64
	messageID int
	logger    Logger
}

// Send implements dispatch.Sink.
func (s *chatSink) Send(_ context.Context, resp dispatch.Response) error {
	markup := keyboard(resp.Buttons)

	if resp.Replace && s.messageID != 0 {
		var edit tgbotapi.EditMessageTextConfig
		if markup != nil {
			edit = tgbotapi.NewEditMessageTextAndMarkup(s.chatID, s.messageID, resp.Text, *markup)
		} else {
			edit = tgbotapi.NewEditMessageText(s.chatID, s.messageID, resp.Text)
		}
		_, err := s.bot.Send(edit)
		if err == nil {
			return nil
		}
		s.logger.Debug("editing message failed, sending instead", "error", err)
	}

	msg := tgbotapi.NewMessage(s.chatID, resp.Text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	if _, err := s.bot.Send(msg); err != nil {
		sendErrors.WithLabelValues("sendMessage").Inc()
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}
