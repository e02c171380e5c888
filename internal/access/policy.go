package access

// Policy answers authorisation questions against a Store.
//
// Effective authorisation is: owner OR capability in the identity's record.
// Strangers are short-circuited before any record lookup.
type Policy struct {
	store *Store
}

// NewPolicy creates a policy over store.
func NewPolicy(store *Store) *Policy {
	return &Policy{store: store}
}

// IsAdmin reports whether id has the owner role.
func (p *Policy) IsAdmin(id Identity) bool {
	return p.store.IsOwner(id)
}

// IsKnown reports whether id is an owner or has a record.
func (p *Policy) IsKnown(id Identity) bool {
	if p.store.IsOwner(id) {
		return true
	}
	_, ok := p.store.Lookup(id)
	return ok
}

// IsStranger is the negation of IsKnown.
func (p *Policy) IsStranger(id Identity) bool {
	return !p.IsKnown(id)
}

// Authorize reports whether id may exercise c.
func (p *Policy) Authorize(id Identity, c Capability) bool {
	if p.store.IsOwner(id) {
		return true
	}
	u, ok := p.store.Lookup(id)
	if !ok {
		return false
	}
	return u.Has(c)
}

// Granted returns the capabilities id may exercise, in display order.
func (p *Policy) Granted(id Identity) []Capability {
	out := make([]Capability, 0, len(AllCapabilities))
	for _, c := range AllCapabilities {
		if p.Authorize(id, c) {
			out = append(out, c)
		}
	}
	return out
}
