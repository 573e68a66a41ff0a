// Package perm classifies callers into permission tiers. Owner and admin
// are independent predicates; an identity may satisfy both, and elevated
// checks treat them as an OR.
package perm

import "tagbot/internal/store"

type Tier int

const (
	TierMember Tier = iota
	TierAdmin
	TierOwner
)

func (t Tier) String() string {
	switch t {
	case TierOwner:
		return "owner"
	case TierAdmin:
		return "admin"
	default:
		return "member"
	}
}

// Gate is a pure read layer over the store.
type Gate struct {
	store *store.Store
}

func NewGate(s *store.Store) *Gate {
	return &Gate{store: s}
}

// Classify returns the highest tier the identity satisfies.
func (g *Gate) Classify(id int64) Tier {
	switch {
	case g.store.IsOwner(id):
		return TierOwner
	case g.store.IsAdmin(id):
		return TierAdmin
	default:
		return TierMember
	}
}

func (g *Gate) IsOwner(id int64) bool { return g.store.IsOwner(id) }

func (g *Gate) IsAdmin(id int64) bool { return g.store.IsAdmin(id) }

func (g *Gate) IsOwnerOrAdmin(id int64) bool {
	return g.store.IsOwner(id) || g.store.IsAdmin(id)
}
