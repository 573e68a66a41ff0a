package bot

import (
	"strings"

	"tagbot/internal/perm"
	"tagbot/internal/transport"
)

// buildHelp assembles the /help text for a caller's permission tier.
// Higher tiers see everything the lower tiers see plus their own section.
func buildHelp(tier perm.Tier) string {
	var b strings.Builder
	b.WriteString("🤖 **Telegram Tag Bot Help**\n\n")
	b.WriteString("🔧 **General Commands:**\n")
	b.WriteString("/tag - Tag 10 members at a time\n")
	b.WriteString("/afk [reason] - Set yourself as AFK\n")
	b.WriteString("/back - Remove AFK status\n")
	b.WriteString("/help - Show this help\n\n")

	if tier >= perm.TierAdmin {
		b.WriteString("👨‍💻 **Admin Commands:**\n")
		b.WriteString("/setemoji <emoji> - Set custom tag emoji\n")
		b.WriteString("/broadcast <message> - Send to all users/groups\n\n")
	}
	if tier >= perm.TierOwner {
		b.WriteString("👑 **Owner Commands:**\n")
		b.WriteString("/addadmin @username - Add admin\n")
		b.WriteString("/removeadmin @username - Remove admin\n\n")
	}

	b.WriteString("💡 **Tips:**\n")
	b.WriteString("• Use /tag as reply to tag on specific message\n")
	b.WriteString("• Bot works in groups and private chats\n")
	b.WriteString("• AFK auto-replies when someone mentions you\n")
	return b.String()
}

func ownerWelcome(firstName string) string {
	return "🎉 Welcome " + firstName + "!\n\n" +
		"You are now the **Owner** of this bot!\n\n" +
		"Available commands:\n" +
		"👑 **Owner Commands:**\n" +
		"/addadmin @username - Add admin\n" +
		"/removeadmin @username - Remove admin\n\n" +
		"🔧 **General Commands:**\n" +
		"/tag - Tag members in group\n" +
		"/afk [reason] - Set AFK status\n" +
		"/back - Remove AFK status\n" +
		"/setemoji <emoji> - Set tag emoji\n" +
		"/broadcast <message> - Send to all users\n" +
		"/help - Show this help"
}

func userWelcome(firstName string) string {
	return "👋 Hello " + firstName + "!\n\n" +
		"I'm a group management bot with tagging features!\n\n" +
		"🔧 **Available Commands:**\n" +
		"/tag - Tag members in group\n" +
		"/afk [reason] - Set AFK status\n" +
		"/back - Remove AFK status\n" +
		"/help - Show help\n\n" +
		"Add me to your group to use tagging features!"
}

// menuCommands is the command list pushed to the platform's command menu.
// Only generally-available commands are advertised.
func menuCommands() []transport.BotCommand {
	return []transport.BotCommand{
		{Command: "start", Description: "Start the bot"},
		{Command: "help", Description: "Show help"},
		{Command: "tag", Description: "Tag group members"},
		{Command: "afk", Description: "Set AFK status"},
		{Command: "back", Description: "Remove AFK status"},
		{Command: "setemoji", Description: "Set custom tag emoji"},
	}
}
