package dispatch

import (
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/lockbot/internal/access"
)

// Sender carries the transport profile of the person behind an identity.
// It is only used for the identity echo.
type Sender struct {
	UserID       int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}

// Request is one inbound interaction, decoded at the gateway boundary.
type Request struct {
	// ID correlates log lines and events for this interaction.
	ID          string
	Identity    access.Identity
	Sender      Sender
	Interaction Interaction
}

// NewRequest builds a request with a fresh correlation ID.
func NewRequest(id access.Identity, sender Sender, in Interaction) Request {
	return Request{
		ID:          uuid.NewString(),
		Identity:    id,
		Sender:      sender,
		Interaction: in,
	}
}

// Interaction is one of Command, PlainText or ButtonPress.
type Interaction interface {
	kind() string
}

// Command is a slash command such as /start.
type Command struct {
	// Name is lower-cased, without the slash or a @botname suffix.
	Name string
	// Text is the full message text.
	Text string
}

func (Command) kind() string { return "command" }

// PlainText is a message that is not a command.
type PlainText struct {
	Text string
}

func (PlainText) kind() string { return "text" }

// ParseMessage classifies a text message as a Command or PlainText.
func ParseMessage(text string) Interaction {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return PlainText{Text: trimmed}
	}

	name := strings.TrimPrefix(strings.Fields(trimmed)[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return PlainText{Text: trimmed}
	}
	return Command{Name: strings.ToLower(name), Text: trimmed}
}

// ButtonKind identifies what an inline button does.
type ButtonKind int

// Button kinds, one per callback namespace/action pair.
const (
	ButtonUnknown ButtonKind = iota
	ButtonCommand
	ButtonLangMenu
	ButtonLangSet
	ButtonAdminAddUser
	ButtonAdminListUsers
	ButtonAdminEdit
	ButtonAdminToggle
	ButtonAdminGrantAll
	ButtonAdminRevokeAll
	ButtonAdminDelete
	ButtonAdminBack
	ButtonConfirmOpen
	ButtonCancelOpen
)

// ButtonPress is a decoded inline button callback.
type ButtonPress struct {
	Kind ButtonKind

	// Command is set for ButtonCommand ("lock", "status", ...).
	Command string
	// Lang is set for ButtonLangSet.
	Lang string
	// Target is set for admin buttons that address a user.
	Target access.Identity
	// BadTarget holds the raw target when it was not a valid identity.
	BadTarget string
	// Capability is set for ButtonAdminToggle.
	Capability access.Capability
	// Token is set for ButtonConfirmOpen and ButtonCancelOpen.
	Token string
}

func (ButtonPress) kind() string { return "button" }

// Callback data prefixes.
const (
	prefixCommand     = "cmd:"
	prefixLang        = "lang:"
	prefixAdmin       = "admin:"
	prefixConfirmOpen = "confirm_open:"
	prefixCancelOpen  = "cancel_open:"
)

// ParseButton decodes callback data. Unrecognised data yields ButtonUnknown.
func ParseButton(data string) ButtonPress {
	switch {
	case strings.HasPrefix(data, prefixCommand):
		if cmd := strings.TrimPrefix(data, prefixCommand); cmd != "" {
			return ButtonPress{Kind: ButtonCommand, Command: cmd}
		}
	case strings.HasPrefix(data, prefixConfirmOpen):
		return ButtonPress{Kind: ButtonConfirmOpen, Token: strings.TrimPrefix(data, prefixConfirmOpen)}
	case strings.HasPrefix(data, prefixCancelOpen):
		return ButtonPress{Kind: ButtonCancelOpen, Token: strings.TrimPrefix(data, prefixCancelOpen)}
	case strings.HasPrefix(data, prefixLang):
		return parseLangButton(strings.TrimPrefix(data, prefixLang))
	case strings.HasPrefix(data, prefixAdmin):
		return parseAdminButton(strings.TrimPrefix(data, prefixAdmin))
	}
	return ButtonPress{Kind: ButtonUnknown}
}

func parseLangButton(rest string) ButtonPress {
	if rest == "menu" {
		return ButtonPress{Kind: ButtonLangMenu}
	}
	if lang, ok := strings.CutPrefix(rest, "set:"); ok && lang != "" {
		return ButtonPress{Kind: ButtonLangSet, Lang: lang}
	}
	return ButtonPress{Kind: ButtonUnknown}
}

func parseAdminButton(rest string) ButtonPress {
	action, args, _ := strings.Cut(rest, ":")

	switch action {
	case "adduser_help":
		return ButtonPress{Kind: ButtonAdminAddUser}
	case "listusers":
		return ButtonPress{Kind: ButtonAdminListUsers}
	case "back":
		return ButtonPress{Kind: ButtonAdminBack}
	case "edit":
		return withTarget(ButtonPress{Kind: ButtonAdminEdit}, args)
	case "all":
		return withTarget(ButtonPress{Kind: ButtonAdminGrantAll}, args)
	case "none":
		return withTarget(ButtonPress{Kind: ButtonAdminRevokeAll}, args)
	case "delete":
		return withTarget(ButtonPress{Kind: ButtonAdminDelete}, args)
	case "toggle":
		target, perm, ok := strings.Cut(args, ":")
		c, valid := access.ParseCapability(perm)
		if !ok || !valid {
			return ButtonPress{Kind: ButtonUnknown}
		}
		return withTarget(ButtonPress{Kind: ButtonAdminToggle, Capability: c}, target)
	}
	return ButtonPress{Kind: ButtonUnknown}
}

func withTarget(b ButtonPress, raw string) ButtonPress {
	if raw == "" {
		return ButtonPress{Kind: ButtonUnknown}
	}
	id, err := access.ParseIdentity(raw)
	if err != nil {
		b.BadTarget = raw
		return b
	}
	b.Target = id
	return b
}

// Data encodes the button as callback data; it is the inverse of ParseButton.
func (b ButtonPress) Data() string {
	switch b.Kind {
	case ButtonCommand:
		return prefixCommand + b.Command
	case ButtonLangMenu:
		return prefixLang + "menu"
	case ButtonLangSet:
		return prefixLang + "set:" + b.Lang
	case ButtonAdminAddUser:
		return prefixAdmin + "adduser_help"
	case ButtonAdminListUsers:
		return prefixAdmin + "listusers"
	case ButtonAdminEdit:
		return prefixAdmin + "edit:" + b.target()
	case ButtonAdminToggle:
		return prefixAdmin + "toggle:" + b.target() + ":" + string(b.Capability)
	case ButtonAdminGrantAll:
		return prefixAdmin + "all:" + b.target()
	case ButtonAdminRevokeAll:
		return prefixAdmin + "none:" + b.target()
	case ButtonAdminDelete:
		return prefixAdmin + "delete:" + b.target()
	case ButtonAdminBack:
		return prefixAdmin + "back"
	case ButtonConfirmOpen:
		return prefixConfirmOpen + b.Token
	case ButtonCancelOpen:
		return prefixCancelOpen + b.Token
	}
	return ""
}

func (b ButtonPress) target() string {
	if b.BadTarget != "" {
		return b.BadTarget
	}
	return b.Target.String()
}
