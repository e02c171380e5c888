package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/lockbot/internal/access"
	"github.com/nerrad567/lockbot/internal/bridges/nuki"
	"github.com/nerrad567/lockbot/internal/confirm"
	"github.com/nerrad567/lockbot/internal/i18n"
	"github.com/nerrad567/lockbot/internal/session"
)

// Logger defines the logging interface used by the dispatcher.
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

// LockBridge is the lock device as seen by the dispatcher.
type LockBridge interface {
	PerformAction(ctx context.Context, action nuki.Action) (nuki.ActionResult, error)
	ReadState(ctx context.Context) (nuki.LockState, error)
}

// Deps holds the collaborators of a Dispatcher.
type Deps struct {
	Store    *access.Store
	Policy   *access.Policy
	Tokens   *confirm.Manager
	Sessions *session.Manager
	Bridge   LockBridge
	Catalog  *i18n.Catalog

	// Events is optional.
	Events EventSink
	// Logger is optional.
	Logger Logger
}

// Dispatcher turns interactions into authorised lock operations and
// localised responses.
//
// Interactions from one identity are serialised; different identities are
// handled concurrently.
type Dispatcher struct {
	store    *access.Store
	policy   *access.Policy
	tokens   *confirm.Manager
	sessions *session.Manager
	bridge   LockBridge
	catalog  *i18n.Catalog
	events   EventSink
	logger   Logger
	now      func() time.Time

	locks identityLocks
}

// New creates a dispatcher.
func New(deps Deps) (*Dispatcher, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("dispatch: store is required")
	case deps.Policy == nil:
		return nil, errors.New("dispatch: policy is required")
	case deps.Tokens == nil:
		return nil, errors.New("dispatch: confirmation manager is required")
	case deps.Sessions == nil:
		return nil, errors.New("dispatch: session manager is required")
	case deps.Bridge == nil:
		return nil, errors.New("dispatch: lock bridge is required")
	case deps.Catalog == nil:
		return nil, errors.New("dispatch: text catalog is required")
	}

	d := &Dispatcher{
		store:    deps.Store,
		policy:   deps.Policy,
		tokens:   deps.Tokens,
		sessions: deps.Sessions,
		bridge:   deps.Bridge,
		catalog:  deps.Catalog,
		events:   deps.Events,
		logger:   deps.Logger,
		now:      time.Now,
		locks:    identityLocks{locks: make(map[access.Identity]*identityLock)},
	}
	if d.events == nil {
		d.events = EventSinks(nil)
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	return d, nil
}

// turn is the state of one Dispatch call.
type turn struct {
	ctx  context.Context
	req  Request
	id   access.Identity
	lang string
	sink Sink
	err  error
}

// Dispatch handles one interaction and writes its responses to sink.
//
// User-facing failures (refusals, bridge errors, invalid input) are reported
// through sink, never returned.
//
// Parameters:
//   - ctx: Context for bridge calls, store saves and sink delivery
//   - req: The decoded interaction, carrying the sender identity
//   - sink: Receives every response for req, in order
//
// Returns:
//   - error: Joined sink delivery failures, or nil
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, sink Sink) error {
	if req.Interaction == nil {
		return errors.New("dispatch: request has no interaction")
	}

	unlock := d.locks.lock(req.Identity)
	defer unlock()

	start := d.now()
	kind := req.Interaction.kind()
	t := &turn{
		ctx:  ctx,
		req:  req,
		id:   req.Identity,
		lang: string(d.store.Language(req.Identity)),
		sink: sink,
	}

	outcome := d.route(t)

	elapsed := d.now().Sub(start)
	interactionsTotal.WithLabelValues(kind, outcome).Inc()
	interactionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	d.logger.Info("interaction handled",
		"request_id", req.ID,
		"identity", req.Identity,
		"kind", kind,
		"outcome", outcome,
		"duration", elapsed,
	)
	return t.err
}

func (d *Dispatcher) route(t *turn) string {
	if d.policy.IsStranger(t.id) {
		// The identity echo is the one thing a stranger may see.
		if c, ok := t.req.Interaction.(Command); ok && c.Name == "id" {
			d.showIdentity(t)
			return outcomeOK
		}
		return d.refuse(t)
	}

	// Any interaction other than resolving the confirmation voids it.
	if b, ok := t.req.Interaction.(ButtonPress); !ok || (b.Kind != ButtonConfirmOpen && b.Kind != ButtonCancelOpen) {
		if d.tokens.Cancel(t.id) {
			confirmationsTotal.WithLabelValues("superseded").Inc()
		}
	}

	switch in := t.req.Interaction.(type) {
	case Command:
		return d.handleCommand(t, in)
	case PlainText:
		return d.handleText(t, in)
	case ButtonPress:
		return d.handleButton(t, in)
	}
	return d.unknown(t, "unknown_command")
}

func (d *Dispatcher) handleCommand(t *turn, c Command) string {
	switch c.Name {
	case "start", "menu", "help":
		d.greet(t)
		return outcomeOK
	case "id":
		d.showIdentity(t)
		return outcomeOK
	case "cancel":
		d.cancel(t)
		return outcomeOK
	}
	if outcome, ok := d.runCommand(t, c.Name); ok {
		return outcome
	}
	return d.unknown(t, "unknown_command")
}

func (d *Dispatcher) handleButton(t *turn, b ButtonPress) string {
	switch b.Kind {
	case ButtonCommand:
		if b.Command == "id" {
			d.showIdentity(t)
			return outcomeOK
		}
		if outcome, ok := d.runCommand(t, b.Command); ok {
			return outcome
		}
	case ButtonConfirmOpen:
		return d.confirmOpen(t, b.Token)
	case ButtonCancelOpen:
		return d.cancelOpen(t, b.Token)
	case ButtonLangMenu:
		d.languageMenu(t)
		return outcomeOK
	case ButtonLangSet:
		if lang, ok := access.ParseLanguage(b.Lang); ok {
			d.setLanguage(t, lang)
			return outcomeOK
		}
	case ButtonAdminAddUser, ButtonAdminListUsers, ButtonAdminEdit, ButtonAdminToggle,
		ButtonAdminGrantAll, ButtonAdminRevokeAll, ButtonAdminDelete, ButtonAdminBack:
		if !d.policy.IsAdmin(t.id) {
			return d.refuse(t)
		}
		return d.handleAdmin(t, b)
	}
	return d.unknown(t, "unknown_command")
}

// runCommand handles the lock-control command names shared by slash
// commands and cmd: buttons. ok is false for names it does not know.
func (d *Dispatcher) runCommand(t *turn, name string) (outcome string, ok bool) {
	switch name {
	case "lock":
		return d.performAction(t, access.CapLock), true
	case "unlock":
		return d.performAction(t, access.CapUnlock), true
	case "lockngo":
		return d.performAction(t, access.CapLockNGo), true
	case "open":
		return d.askOpenConfirmation(t), true
	case "status":
		return d.showStatus(t), true
	}
	return "", false
}

// refuse sends the fixed refusal. It is identical for strangers and for
// known identities lacking a capability.
func (d *Dispatcher) refuse(t *turn) string {
	d.send(t, Response{Text: d.text(t, "unauthorized", nil)})
	return outcomeRefused
}

func (d *Dispatcher) unknown(t *turn, key string) string {
	d.send(t, Response{Text: d.text(t, key, nil), Buttons: d.mainMenu(t)})
	return outcomeUnknown
}

func (d *Dispatcher) send(t *turn, resp Response) {
	if err := t.sink.Send(t.ctx, resp); err != nil {
		d.logger.Warn("sending response failed", "request_id", t.req.ID, "error", err)
		t.err = errors.Join(t.err, err)
	}
}

func (d *Dispatcher) text(t *turn, key string, vars i18n.Vars) string {
	return d.catalog.Text(key, t.lang, vars)
}

func (d *Dispatcher) label(t *turn, key string) string {
	return d.catalog.Button(key, t.lang)
}

// identityLocks hands out one mutex per identity, dropping idle entries.
type identityLocks struct {
	mu    sync.Mutex
	locks map[access.Identity]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

func (l *identityLocks) lock(id access.Identity) func() {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &identityLock{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
