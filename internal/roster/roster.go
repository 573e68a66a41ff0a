// Package roster assembles the best-effort set of taggable members for a
// group. Telegram only exposes administrators and individually-probed users
// to bots, so a complete roster is impossible by design; the engine layers
// what is visible (admins), what was remembered (stored members), and what
// can be discovered (per-user probes).
package roster

import (
	"context"
	"time"

	"tagbot/internal/store"
	"tagbot/internal/transport"
	logx "tagbot/pkg/logx"
)

type Config struct {
	// ProbeEvery: pause after this many membership probes to stay under
	// the transport's rate limits. Default 5.
	ProbeEvery int
	// ProbePause is the length of that pause. Default 100ms.
	ProbePause time.Duration
}

func (c *Config) normalize() {
	if c.ProbeEvery <= 0 {
		c.ProbeEvery = 5
	}
	if c.ProbePause <= 0 {
		c.ProbePause = 100 * time.Millisecond
	}
}

type Engine struct {
	adapter transport.Adapter
	store   *store.Store
	log     logx.Logger
	cfg     Config
}

func New(adapter transport.Adapter, st *store.Store, cfg Config, log logx.Logger) *Engine {
	cfg.normalize()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{adapter: adapter, store: st, log: log, cfg: cfg}
}

// Discover returns the deduplicated ordered roster for chatID, excluding
// the invoking identity. privileged reports whether the bot held admin
// status (and therefore ran the full three-source union); when it did not,
// the result is the filtered administrator list and nothing more, because
// the transport refuses arbitrary member enumeration to unprivileged bots.
//
// Result order is stable: administrators, then cached members, then
// probe-discovered members, each in discovery order.
func (e *Engine) Discover(ctx context.Context, chatID, exclude int64) (members []transport.Identity, privileged bool, err error) {
	self := e.adapter.Self()

	switch pm := e.adapter.ProbeMember(ctx, chatID, self.ID); pm.Outcome {
	case transport.MembershipFound:
		privileged = pm.Status.Elevated()
	case transport.MembershipFailed:
		e.log.Warn("bot status check failed; assuming unprivileged", logx.Int64("chat_id", chatID), logx.Err(pm.Err))
	}

	if !privileged {
		admins, err := e.adapter.Admins(ctx, chatID)
		if err != nil {
			return nil, false, err
		}
		out := make([]transport.Identity, 0, len(admins))
		for _, m := range admins {
			if m.IsBot || m.ID == exclude || !m.Status.Present() {
				continue
			}
			out = append(out, m.Identity)
		}
		return out, false, nil
	}

	seen := map[int64]struct{}{exclude: {}, self.ID: {}}
	out := make([]transport.Identity, 0, 16)

	// Source 1: administrators. Always visible; failures here degrade to
	// the remaining sources instead of aborting.
	admins, err := e.adapter.Admins(ctx, chatID)
	if err != nil {
		e.log.Warn("administrator list unavailable", logx.Int64("chat_id", chatID), logx.Err(err))
	}
	for _, m := range admins {
		if m.IsBot || !m.Status.Present() {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m.Identity)
	}

	// Source 2: previously recorded members, trusted without
	// re-verification. Stale entries (members who since left) linger here
	// on purpose; the sweep below only ever adds.
	for _, id := range e.store.GroupMembers(chatID) {
		if _, ok := seen[id]; ok {
			continue
		}
		ident, ok := e.store.User(id)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, ident)
	}

	// Source 3: probe sweep over every other known user.
	probes := 0
	for _, id := range e.store.AllUsers() {
		if _, ok := seen[id]; ok {
			continue
		}
		pm := e.adapter.ProbeMember(ctx, chatID, id)
		probes++

		switch pm.Outcome {
		case transport.MembershipFound:
			if pm.Status.Present() {
				// Self-heal the cache so the next tag skips this probe.
				if err := e.store.AddGroupMember(chatID, id); err != nil {
					e.log.Warn("member cache update failed", logx.Int64("chat_id", chatID), logx.Err(err))
				}
				if ident, ok := e.store.User(id); ok {
					seen[id] = struct{}{}
					out = append(out, ident)
					e.log.Debug("discovered group member", logx.Int64("chat_id", chatID), logx.Int64("user_id", id))
				}
			}
		case transport.MembershipNotApplicable:
			// Expected for every known user who isn't in this chat.
		case transport.MembershipFailed:
			e.log.Warn("member probe failed", logx.Int64("chat_id", chatID), logx.Int64("user_id", id), logx.Err(pm.Err))
		}

		if probes%e.cfg.ProbeEvery == 0 {
			if err := sleep(ctx, e.cfg.ProbePause); err != nil {
				return out, true, err
			}
		}
	}

	e.log.Info("roster assembled",
		logx.Int64("chat_id", chatID),
		logx.Int("members", len(out)),
		logx.Int("probes", probes),
	)
	return out, true, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
