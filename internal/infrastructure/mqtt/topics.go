package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "lockbot"

// Topics builds lockbot topic names under a prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("home/frontdoor")
//	topics.LockAction("unlock")
//	// Returns: "home/frontdoor/lock/action/unlock"
type Topics struct {
	prefix string
}

// NewTopics returns builders under prefix. Surrounding slashes are trimmed
// and an empty prefix selects DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	return t.prefix
}

// SystemStatus returns the online/offline status topic.
//
// Example: lockbot/system/status
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}

// LockState returns the retained state snapshot topic.
//
// Example: lockbot/lock/state
func (t Topics) LockState() string {
	return t.prefix + "/lock/state"
}

// LockAction returns the topic for results of one action kind.
//
// Example: lockbot/lock/action/unlatch
func (t Topics) LockAction(action string) string {
	return t.prefix + "/lock/action/" + action
}

// AllLockActions returns a pattern matching every action result.
//
// Pattern: lockbot/lock/action/+
func (t Topics) AllLockActions() string {
	return t.prefix + "/lock/action/+"
}

// AllTopics returns a pattern matching all lockbot topics.
//
// Pattern: lockbot/#
func (t Topics) AllTopics() string {
	return t.prefix + "/#"
}
