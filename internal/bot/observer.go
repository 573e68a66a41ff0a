package bot

import (
	"context"
	"fmt"

	logx "tagbot/pkg/logx"
)

// observe handles every non-command message: it keeps the user and group
// records fresh, auto-clears the sender's AFK state, and announces the AFK
// status of anyone the message mentions or replies to.
func (a *App) observe(ctx context.Context, req *Request) error {
	m := req.Message
	from := m.From

	if err := a.store.UpsertUser(from.ID, from.Username, from.FirstName); err != nil {
		req.Logger.Warn("user record update failed", logx.Err(err))
	}
	if m.InGroup() {
		if err := a.store.UpsertGroup(m.ChatID, m.ChatTitle); err != nil {
			req.Logger.Warn("group record update failed", logx.Err(err))
		}
		if err := a.store.AddGroupMember(m.ChatID, from.ID); err != nil {
			req.Logger.Warn("member cache update failed", logx.Err(err))
		}
	}

	// Any message ends the sender's AFK state.
	if rec, ok := a.store.AFK(from.ID); ok {
		if removed, err := a.store.ClearAFK(from.ID); err != nil {
			req.Logger.Warn("afk clear persist failed", logx.Err(err))
		} else if removed {
			if err := a.reply(ctx, req, fmt.Sprintf("✅ Welcome back %s!\nYou were AFK for %s.", from.FirstName, formatDuration(rec.Since))); err != nil {
				return err
			}
		}
	}

	// Mentions of AFK users. notified dedupes a user mentioned both by
	// @username and as the reply target.
	notified := map[int64]struct{}{}

	for _, men := range m.Mentions {
		if men.User != nil {
			a.notifyAFK(ctx, req, men.User.ID, displayName(men.User.Username, men.User.FirstName), notified)
			continue
		}
		if ident, ok := a.store.UserByUsername(men.Username); ok {
			a.notifyAFK(ctx, req, ident.ID, "@"+men.Username, notified)
		}
	}

	if r := m.ReplyTo; r != nil {
		a.notifyAFK(ctx, req, r.From.ID, displayName(r.From.Username, r.From.FirstName), notified)
	}
	return nil
}

func (a *App) notifyAFK(ctx context.Context, req *Request, userID int64, name string, notified map[int64]struct{}) {
	if _, done := notified[userID]; done {
		return
	}
	rec, ok := a.store.AFK(userID)
	if !ok {
		return
	}
	notified[userID] = struct{}{}

	dur := formatDuration(rec.Since)
	text := fmt.Sprintf("💤 %s is AFK for %s", name, dur)
	if rec.Reason != nil && *rec.Reason != "" {
		text += "\nReason: " + *rec.Reason
	}
	if err := a.reply(ctx, req, text); err != nil {
		req.Logger.Warn("afk notice failed", logx.Int64("user_id", userID), logx.Err(err))
	}
}

func displayName(username, firstName string) string {
	if username != "" {
		return username
	}
	return firstName
}
