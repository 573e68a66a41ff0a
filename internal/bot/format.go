package bot

import (
	"fmt"
	"strings"
	"time"
)

// formatDuration renders an AFK span as "N hour(s) M minute(s)" or just
// minutes when under an hour. Seconds are deliberately dropped.
func formatDuration(since time.Time) string {
	total := int(time.Since(since).Minutes())
	if total < 0 {
		total = 0
	}
	hours := total / 60
	minutes := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d %s %d %s", hours, plural(hours, "hour"), minutes, plural(minutes, "minute"))
	}
	return fmt.Sprintf("%d %s", minutes, plural(minutes, "minute"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// validEmoji accepts a single rune in the common emoji blocks, or a short
// multi-rune cluster containing at least one rune above U+1F000 (covers
// skin-tone and ZWJ sequences without a full Unicode table).
func validEmoji(s string) bool {
	if s == "" {
		return false
	}
	rs := []rune(s)
	if len(rs) == 1 {
		r := rs[0]
		return (r >= 0x1F600 && r <= 0x1F64F) || // emoticons
			(r >= 0x1F300 && r <= 0x1F5FF) || // misc symbols and pictographs
			(r >= 0x1F680 && r <= 0x1F6FF) || // transport and map
			(r >= 0x1F1E6 && r <= 0x1F1FF) || // regional indicators
			(r >= 0x2600 && r <= 0x26FF) || // misc symbols
			(r >= 0x2700 && r <= 0x27BF) // dingbats
	}
	if len(rs) > 4 {
		return false
	}
	for _, r := range rs {
		if r > 0x1F000 {
			return true
		}
	}
	return false
}

// parseUsername strips a leading @ and surrounding space. Empty result
// means no usable username was given.
func parseUsername(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimPrefix(s, "@")
}

// splitCommand breaks "/cmd@botname arg arg" into the bare command name
// and its argument list. Returns ok=false for non-command text.
func splitCommand(text string) (cmd string, args []string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	cmd = strings.TrimPrefix(fields[0], "/")
	// Group chats address commands as /cmd@botname.
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd == "" {
		return "", nil, false
	}
	return strings.ToLower(cmd), fields[1:], true
}
