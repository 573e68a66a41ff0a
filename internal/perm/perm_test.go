package perm

import (
	"testing"

	"tagbot/internal/store"
	logx "tagbot/pkg/logx"
)

func newGate(t *testing.T) (*Gate, *store.Store) {
	t.Helper()
	st := store.New(nil, logx.Nop())
	return NewGate(st), st
}

func TestClassify(t *testing.T) {
	t.Parallel()
	g, st := newGate(t)

	if _, err := st.SetOwner(1); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}
	if _, err := st.AddAdmin(2); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}

	tests := []struct {
		name string
		id   int64
		want Tier
	}{
		{"owner", 1, TierOwner},
		{"admin", 2, TierAdmin},
		{"member", 3, TierMember},
		{"unknown user", 999, TierMember},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := g.Classify(tt.id); got != tt.want {
				t.Fatalf("Classify(%d) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestOwnerInAdminSetStaysOwner(t *testing.T) {
	t.Parallel()
	g, st := newGate(t)

	if _, err := st.SetOwner(5); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}
	// Nothing prevents the owner from also being listed as admin; the
	// higher tier must win.
	if _, err := st.AddAdmin(5); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}

	if got := g.Classify(5); got != TierOwner {
		t.Fatalf("Classify(owner+admin) = %v, want TierOwner", got)
	}
	if !g.IsOwner(5) || !g.IsOwnerOrAdmin(5) {
		t.Fatal("owner+admin failed IsOwner/IsOwnerOrAdmin")
	}
}

func TestIsOwnerOrAdmin(t *testing.T) {
	t.Parallel()
	g, st := newGate(t)

	if _, err := st.SetOwner(1); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}
	if _, err := st.AddAdmin(2); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}

	if !g.IsOwnerOrAdmin(1) {
		t.Fatal("owner rejected by IsOwnerOrAdmin")
	}
	if !g.IsOwnerOrAdmin(2) {
		t.Fatal("admin rejected by IsOwnerOrAdmin")
	}
	if g.IsOwnerOrAdmin(3) {
		t.Fatal("plain member accepted by IsOwnerOrAdmin")
	}
	if g.IsOwner(2) {
		t.Fatal("admin accepted by IsOwner")
	}
}

func TestTierString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		tier Tier
		want string
	}{
		{TierMember, "member"},
		{TierAdmin, "admin"},
		{TierOwner, "owner"},
	}
	for _, tt := range tests {
		if got := tt.tier.String(); got != tt.want {
			t.Fatalf("Tier(%d).String() = %q, want %q", tt.tier, got, tt.want)
		}
	}
}
