package adapter

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestSplitTelegramTextShort(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("hello", 4000)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %v", got)
	}
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	lines := strings.Repeat("aaaaaaaaaa\n", 30) // 330 runes
	got := splitTelegramText(strings.TrimRight(lines, "\n"), 100)

	if len(got) < 3 {
		t.Fatalf("chunks = %d, want >= 3", len(got))
	}
	for i, c := range got {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %d has dangling newline: %q", i, c)
		}
	}
	if joined := strings.Join(got, ""); !strings.HasPrefix(joined, "aaaaaaaaaa") {
		t.Fatalf("content mangled: %q", joined[:20])
	}
}

func TestSplitTelegramTextNoBoundary(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 250)
	got := splitTelegramText(long, 100)
	if len(got) != 3 {
		t.Fatalf("chunks = %d, want 3", len(got))
	}
	if total := len(got[0]) + len(got[1]) + len(got[2]); total != 250 {
		t.Fatalf("total runes = %d, want 250", total)
	}
}

func TestEntityText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		text    string
		offset  int
		length  int
		want    string
	}{
		{"ascii", "hi @alice bye", 3, 6, "@alice"},
		{"after astral rune", "👍 @bob", 3, 4, "@bob"}, // 👍 is two UTF-16 units
		{"out of range", "short", 10, 4, ""},
		{"clamped", "hi @al", 3, 99, "@al"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := entityText(tt.text, tt.offset, tt.length); got != tt.want {
				t.Fatalf("entityText(%q, %d, %d) = %q, want %q", tt.text, tt.offset, tt.length, got, tt.want)
			}
		})
	}
}

func TestConvertMentions(t *testing.T) {
	t.Parallel()
	m := &tele.Message{
		Text: "ping @alice and Bob",
		Entities: []tele.MessageEntity{
			{Type: tele.EntityMention, Offset: 5, Length: 6},
			{Type: tele.EntityTMention, Offset: 16, Length: 3, User: &tele.User{ID: 2, FirstName: "Bob"}},
			{Type: tele.EntityBold, Offset: 0, Length: 4},
		},
	}
	got := convertMentions(m)
	if len(got) != 2 {
		t.Fatalf("mentions = %d, want 2", len(got))
	}
	if got[0].Username != "alice" || got[0].User != nil {
		t.Fatalf("mention[0] = %+v", got[0])
	}
	if got[1].User == nil || got[1].User.ID != 2 || got[1].User.FirstName != "Bob" {
		t.Fatalf("mention[1] = %+v", got[1])
	}
}

func TestConvertRole(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   tele.MemberStatus
		want string
	}{
		{tele.Creator, "creator"},
		{tele.Administrator, "administrator"},
		{tele.Member, "member"},
		{tele.Restricted, "restricted"},
		{tele.Left, "left"},
		{tele.Kicked, "kicked"},
	}
	for _, tt := range tests {
		if got := convertRole(tt.in); string(got) != tt.want {
			t.Fatalf("convertRole(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
