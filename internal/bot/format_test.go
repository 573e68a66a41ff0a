package bot

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"seconds round down", 30 * time.Second, "0 minutes"},
		{"single minute", 61 * time.Second, "1 minute"},
		{"minutes only", 25 * time.Minute, "25 minutes"},
		{"one hour", 60 * time.Minute, "1 hour 0 minutes"},
		{"hour and one minute", 61 * time.Minute, "1 hour 1 minute"},
		{"plural hours", 3*time.Hour + 5*time.Minute, "3 hours 5 minutes"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatDuration(time.Now().Add(-tt.ago)); got != tt.want {
				t.Fatalf("formatDuration(-%v) = %q, want %q", tt.ago, got, tt.want)
			}
		})
	}
}

func TestValidEmoji(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want bool
	}{
		{"🔔", true},
		{"🔥", true},
		{"😀", true},
		{"🚀", true},
		{"☀", true},
		{"✂", true},
		{"👍🏽", true}, // skin tone modifier
		{"", false},
		{"a", false},
		{"hello", false},
		{"@", false},
		{"abcd", false},
	}
	for _, tt := range tests {
		if got := validEmoji(tt.in); got != tt.want {
			t.Fatalf("validEmoji(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"@alice", "alice"},
		{"alice", "alice"},
		{"  @bob  ", "bob"},
		{"@", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseUsername(tt.in); got != tt.want {
			t.Fatalf("parseUsername(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		in       string
		wantCmd  string
		wantArgs []string
		wantOK   bool
	}{
		{"bare command", "/tag", "tag", nil, true},
		{"command with args", "/broadcast hello world", "broadcast", []string{"hello", "world"}, true},
		{"addressed form", "/tag@my_tag_bot urgent", "tag", []string{"urgent"}, true},
		{"uppercase normalized", "/TAG", "tag", nil, true},
		{"plain text", "hello", "", nil, false},
		{"lone slash", "/", "", nil, false},
		{"slash with space", "/ tag", "", nil, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd, args, ok := splitCommand(tt.in)
			if ok != tt.wantOK || cmd != tt.wantCmd {
				t.Fatalf("splitCommand(%q) = %q, %v, %v", tt.in, cmd, args, ok)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Fatalf("args = %v, want %v", args, tt.wantArgs)
				}
			}
		})
	}
}
