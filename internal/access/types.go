package access

import (
	"slices"
	"strconv"
)

// Identity is the chat identifier used as the authorisation subject.
type Identity int64

// String returns the decimal form used in callback data and persisted keys.
func (id Identity) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseIdentity parses a decimal chat identifier. Group chats use negative IDs.
func ParseIdentity(s string) (Identity, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Identity(n), nil
}

// Capability is one of the fixed lock-control permissions.
type Capability string

// The capability enumeration is closed.
const (
	CapLock    Capability = "lock"
	CapUnlock  Capability = "unlock"
	CapOpen    Capability = "open"
	CapLockNGo Capability = "lockngo"
	CapStatus  Capability = "status"
)

// AllCapabilities lists every capability in display order.
var AllCapabilities = []Capability{CapLock, CapUnlock, CapOpen, CapLockNGo, CapStatus}

// ParseCapability maps a persisted or callback string to a Capability.
func ParseCapability(s string) (Capability, bool) {
	c := Capability(s)
	if slices.Contains(AllCapabilities, c) {
		return c, true
	}
	return "", false
}

// RequiresConfirmation reports whether the capability is irreversible and
// must be confirmed before the bridge is called.
func (c Capability) RequiresConfirmation() bool {
	return c == CapOpen
}

// Language is a display language code.
type Language string

// Supported languages.
const (
	LangIT Language = "it"
	LangEN Language = "en"
)

// DefaultLanguage is used for identities without a stored preference.
const DefaultLanguage = LangIT

// ParseLanguage accepts only supported language codes.
func ParseLanguage(s string) (Language, bool) {
	switch Language(s) {
	case LangIT, LangEN:
		return Language(s), true
	}
	return "", false
}

// storedLanguage maps a persisted language code to a supported one.
// Empty or unsupported codes fall back to DefaultLanguage.
func storedLanguage(s string) Language {
	if lang, ok := ParseLanguage(s); ok {
		return lang
	}
	return DefaultLanguage
}

// UserRecord describes a non-owner identity allowed to talk to the bot.
type UserRecord struct {
	Identity Identity
	Name     string
	Allowed  []Capability
	Lang     Language
}

// Has reports whether the record grants c.
func (u UserRecord) Has(c Capability) bool {
	return slices.Contains(u.Allowed, c)
}

// Clone returns a copy that shares no memory with u.
func (u UserRecord) Clone() UserRecord {
	u.Allowed = slices.Clone(u.Allowed)
	return u
}

// NormalizeCapabilities drops unknown values and duplicates and returns the
// rest in display order. The result is never nil.
func NormalizeCapabilities[S ~string](raw []S) []Capability {
	out := make([]Capability, 0, len(AllCapabilities))
	for _, c := range AllCapabilities {
		for _, r := range raw {
			if string(r) == string(c) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
