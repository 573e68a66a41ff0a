package bot

import (
	"context"
	"fmt"
	"strings"

	"tagbot/internal/dispatch"
	"tagbot/internal/transport"
	logx "tagbot/pkg/logx"
)

func (a *App) registerCommands() {
	a.commands = map[string]HandlerFunc{
		"start":       a.handleStart,
		"help":        a.handleHelp,
		"tag":         a.handleTag,
		"afk":         a.handleAFK,
		"back":        a.handleBack,
		"setemoji":    a.handleSetEmoji,
		"addadmin":    a.handleAddAdmin,
		"removeadmin": a.handleRemoveAdmin,
		"broadcast":   a.handleBroadcast,
	}
}

func (a *App) handleStart(ctx context.Context, req *Request) error {
	from := req.Message.From
	if err := a.store.UpsertUser(from.ID, from.Username, from.FirstName); err != nil {
		req.Logger.Warn("user record update failed", logx.Err(err))
	}

	claimed, err := a.store.SetOwner(from.ID)
	if err != nil {
		req.Logger.Warn("owner claim persist failed", logx.Err(err))
	}
	if claimed {
		req.Logger.Info("owner claimed", logx.Int64("user_id", from.ID))
		return a.reply(ctx, req, ownerWelcome(from.FirstName))
	}
	return a.reply(ctx, req, userWelcome(from.FirstName))
}

func (a *App) handleHelp(ctx context.Context, req *Request) error {
	return a.reply(ctx, req, buildHelp(a.perm.Classify(req.Message.From.ID)))
}

func (a *App) handleTag(ctx context.Context, req *Request) error {
	m := req.Message
	if !m.InGroup() {
		return a.reply(ctx, req, "❌ Tag command only works in groups!")
	}

	// The tag itself is proof of group activity.
	if err := a.store.UpsertGroup(m.ChatID, m.ChatTitle); err != nil {
		req.Logger.Warn("group record update failed", logx.Err(err))
	}

	members, privileged, err := a.roster.Discover(ctx, m.ChatID, m.From.ID)
	if err != nil {
		req.Logger.Warn("roster discovery failed", logx.Err(err))
		return a.reply(ctx, req, "❌ An error occurred while tagging members!")
	}

	if len(members) == 0 {
		if !privileged {
			return a.reply(ctx, req, "❌ I need admin rights to tag all members in this group!")
		}
		return a.reply(ctx, req, "❌ No members to tag!")
	}

	tp := a.tagParams()
	opt := dispatch.Options{
		BatchSize:    tp.BatchSize,
		Delay:        tp.BatchDelay,
		Emoji:        a.store.Emoji(),
		Announcement: strings.Join(req.Args, " "),
	}
	if r := m.ReplyTo; r != nil {
		opt.ReplyTo = &transport.MessageRef{ChatID: m.ChatID, MessageID: r.MessageID}
	}

	if _, err := a.dispatcher.Send(ctx, req.Chat, members, opt); err != nil {
		req.Logger.Warn("tag dispatch aborted", logx.Err(err))
		return a.reply(ctx, req, fmt.Sprintf("❌ Error tagging members: %v", err))
	}
	return nil
}

func (a *App) handleAFK(ctx context.Context, req *Request) error {
	from := req.Message.From
	reason := strings.Join(req.Args, " ")

	if err := a.store.SetAFK(from.ID, reason); err != nil {
		req.Logger.Warn("afk persist failed", logx.Err(err))
	}

	if reason != "" {
		return a.reply(ctx, req, fmt.Sprintf("😴 %s is now AFK: %s", from.FirstName, reason))
	}
	return a.reply(ctx, req, fmt.Sprintf("😴 %s is now AFK", from.FirstName))
}

func (a *App) handleBack(ctx context.Context, req *Request) error {
	from := req.Message.From

	rec, wasAFK := a.store.AFK(from.ID)
	removed, err := a.store.ClearAFK(from.ID)
	if err != nil {
		req.Logger.Warn("afk clear persist failed", logx.Err(err))
	}
	if !removed || !wasAFK {
		return a.reply(ctx, req, "❌ You are not AFK!")
	}
	return a.reply(ctx, req, fmt.Sprintf("✅ Welcome back %s!\nYou were AFK for %s.", from.FirstName, formatDuration(rec.Since)))
}

func (a *App) handleSetEmoji(ctx context.Context, req *Request) error {
	if !a.perm.IsOwnerOrAdmin(req.Message.From.ID) {
		return a.reply(ctx, req, "❌ Only owners and admins can set emoji!")
	}
	if len(req.Args) == 0 {
		return a.reply(ctx, req, "❌ Please provide an emoji!\nUsage: /setemoji 🔥")
	}

	emoji := req.Args[0]
	if !validEmoji(emoji) {
		return a.reply(ctx, req, "❌ Please provide a valid emoji!")
	}
	if err := a.store.SetEmoji(emoji); err != nil {
		req.Logger.Warn("emoji persist failed", logx.Err(err))
		return a.reply(ctx, req, "❌ Failed to set emoji!")
	}
	return a.reply(ctx, req, "✅ Tag emoji set to: "+emoji)
}

func (a *App) handleAddAdmin(ctx context.Context, req *Request) error {
	if !a.perm.IsOwner(req.Message.From.ID) {
		return a.reply(ctx, req, "❌ Only the owner can add admins!")
	}
	if len(req.Args) == 0 {
		return a.reply(ctx, req, "❌ Please provide a username!\nUsage: /addadmin @username")
	}

	username := parseUsername(req.Args[0])
	if username == "" {
		return a.reply(ctx, req, "❌ Please provide a valid username!")
	}

	// Usernames only resolve for users the bot has already seen; the
	// platform offers no global username lookup to bots.
	target, ok := a.store.UserByUsername(username)
	if !ok {
		return a.reply(ctx, req, fmt.Sprintf(
			"⚠️ I don't know @%s yet. Ask them to send /start to the bot first, then try again.", username))
	}

	added, err := a.store.AddAdmin(target.ID)
	if err != nil {
		req.Logger.Warn("admin persist failed", logx.Err(err))
	}
	if !added {
		return a.reply(ctx, req, fmt.Sprintf("⚠️ @%s is already an admin!", username))
	}
	req.Logger.Info("admin added", logx.Int64("user_id", target.ID))
	return a.reply(ctx, req, fmt.Sprintf("✅ @%s is now an admin!", username))
}

func (a *App) handleRemoveAdmin(ctx context.Context, req *Request) error {
	if !a.perm.IsOwner(req.Message.From.ID) {
		return a.reply(ctx, req, "❌ Only the owner can remove admins!")
	}
	if len(req.Args) == 0 {
		return a.reply(ctx, req, "❌ Please provide a username!\nUsage: /removeadmin @username")
	}

	username := parseUsername(req.Args[0])
	if username == "" {
		return a.reply(ctx, req, "❌ Please provide a valid username!")
	}

	target, ok := a.store.UserByUsername(username)
	if !ok {
		return a.reply(ctx, req, fmt.Sprintf("⚠️ I don't know @%s.", username))
	}

	removed, err := a.store.RemoveAdmin(target.ID)
	if err != nil {
		req.Logger.Warn("admin persist failed", logx.Err(err))
	}
	if !removed {
		return a.reply(ctx, req, fmt.Sprintf("⚠️ @%s is not an admin!", username))
	}
	req.Logger.Info("admin removed", logx.Int64("user_id", target.ID))
	return a.reply(ctx, req, fmt.Sprintf("✅ @%s is no longer an admin!", username))
}

func (a *App) handleBroadcast(ctx context.Context, req *Request) error {
	from := req.Message.From
	if !a.perm.IsOwnerOrAdmin(from.ID) {
		return a.reply(ctx, req, "❌ Only owners and admins can broadcast!")
	}
	if len(req.Args) == 0 {
		return a.reply(ctx, req, "❌ Please provide a message to broadcast!\nUsage: /broadcast <message>")
	}

	text := strings.Join(req.Args, " ")
	total := 0
	for _, id := range a.store.AllUsers() {
		if id != from.ID {
			total++
		}
	}
	total += len(a.store.AllGroups())
	if err := a.reply(ctx, req, fmt.Sprintf("📢 Broadcasting to %d chats...", total)); err != nil {
		return err
	}

	rep, err := a.broadcast.Run(ctx, text, from.ID)
	if err != nil {
		req.Logger.Warn("broadcast interrupted", logx.Err(err))
		return err
	}
	return a.reply(ctx, req, fmt.Sprintf("✅ Broadcast sent to %d/%d chats!", rep.Sent, rep.Total))
}
