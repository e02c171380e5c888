package access

import (
	"slices"
	"testing"
)

func TestPolicy_Authorize(t *testing.T) {
	repo := newMemRepository(UserRecord{Identity: 200, Name: "Bob", Allowed: []Capability{CapStatus}})
	p := NewPolicy(newTestStore(t, repo, 100))

	tests := []struct {
		name string
		id   Identity
		cap  Capability
		want bool
	}{
		{name: "owner bypass", id: 100, cap: CapOpen, want: true},
		{name: "user granted", id: 200, cap: CapStatus, want: true},
		{name: "user not granted", id: 200, cap: CapLock, want: false},
		{name: "stranger", id: 300, cap: CapStatus, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Authorize(tt.id, tt.cap); got != tt.want {
				t.Errorf("Authorize(%d, %s) = %v, want %v", tt.id, tt.cap, got, tt.want)
			}
		})
	}
}

func TestPolicy_KnownAndStranger(t *testing.T) {
	repo := newMemRepository(UserRecord{Identity: 200, Name: "Bob"})
	p := NewPolicy(newTestStore(t, repo, 100))

	if !p.IsKnown(100) || !p.IsAdmin(100) {
		t.Error("owner must be known and admin")
	}
	if !p.IsKnown(200) || p.IsAdmin(200) {
		t.Error("user must be known and not admin")
	}
	if !p.IsStranger(300) {
		t.Error("unknown identity must be a stranger")
	}
}

func TestPolicy_Granted(t *testing.T) {
	repo := newMemRepository(UserRecord{Identity: 200, Allowed: []Capability{CapStatus, CapLock}})
	p := NewPolicy(newTestStore(t, repo, 100))

	if got := p.Granted(100); !slices.Equal(got, AllCapabilities) {
		t.Errorf("Granted(owner) = %v", got)
	}
	if got := p.Granted(200); !slices.Equal(got, []Capability{CapLock, CapStatus}) {
		t.Errorf("Granted(200) = %v", got)
	}
	if got := p.Granted(300); len(got) != 0 {
		t.Errorf("Granted(stranger) = %v", got)
	}
}

func TestParseHelpers(t *testing.T) {
	if _, ok := ParseCapability("lockngo"); !ok {
		t.Error("lockngo should parse")
	}
	if _, ok := ParseCapability("LOCK"); ok {
		t.Error("capabilities are case sensitive")
	}
	if _, ok := ParseLanguage("en"); !ok {
		t.Error("en should parse")
	}
	if _, ok := ParseLanguage("fr"); ok {
		t.Error("fr is not supported")
	}
	id, err := ParseIdentity("-1001234")
	if err != nil || id != -1001234 {
		t.Errorf("ParseIdentity = %d, %v", id, err)
	}
	if !CapOpen.RequiresConfirmation() || CapLock.RequiresConfirmation() {
		t.Error("only open requires confirmation")
	}
}
