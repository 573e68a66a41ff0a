package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tagbot/internal/transport"
	logx "tagbot/pkg/logx"
)

type sentMsg struct {
	text    string
	replyTo *transport.MessageRef
}

type fakeSender struct {
	sent    []sentMsg
	failAt  int // 1-based send index that fails; 0 = never
	stamps  []time.Time
	nextRef int
}

func (f *fakeSender) Start(context.Context, chan<- transport.Update) error { return nil }
func (f *fakeSender) Stop(context.Context) error                           { return nil }
func (f *fakeSender) Admins(context.Context, int64) ([]transport.Member, error) {
	return nil, nil
}
func (f *fakeSender) ProbeMember(context.Context, int64, int64) transport.Membership {
	return transport.Membership{Outcome: transport.MembershipNotApplicable}
}
func (f *fakeSender) MemberCount(context.Context, int64) (int, error) { return 0, nil }
func (f *fakeSender) Self() transport.Identity                        { return transport.Identity{ID: 999} }

func (f *fakeSender) SendText(_ context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.stamps = append(f.stamps, time.Now())
	if f.failAt > 0 && len(f.sent)+1 == f.failAt {
		return transport.MessageRef{}, errors.New("forbidden: bot was kicked")
	}
	var reply *transport.MessageRef
	if opt != nil {
		reply = opt.ReplyTo
	}
	f.sent = append(f.sent, sentMsg{text: text, replyTo: reply})
	f.nextRef++
	return transport.MessageRef{ChatID: to.ChatID, MessageID: f.nextRef}, nil
}

func makeMembers(n int) []transport.Identity {
	out := make([]transport.Identity, n)
	for i := range out {
		out[i] = transport.Identity{ID: int64(i + 1), Username: "u" + string(rune('a'+i%26))}
	}
	return out
}

var chat = transport.ChatTarget{ChatID: -100}

func TestSendBatching(t *testing.T) {
	t.Parallel()
	fa := &fakeSender{}
	d := New(fa, logx.Nop())

	sent, err := d.Send(context.Background(), chat, makeMembers(23), Options{
		BatchSize: 10,
		Delay:     time.Millisecond,
		Emoji:     "🔔",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent != 3 {
		t.Fatalf("sent = %d, want 3", sent)
	}

	sizes := []int{10, 10, 3}
	for i, msg := range fa.sent {
		if n := strings.Count(msg.text, "🔔"); n != sizes[i] {
			t.Fatalf("batch %d has %d mentions, want %d", i+1, n, sizes[i])
		}
	}
}

func TestSendMentionTokens(t *testing.T) {
	t.Parallel()
	fa := &fakeSender{}
	d := New(fa, logx.Nop())

	members := []transport.Identity{
		{ID: 1, Username: "alice"},
		{ID: 2, FirstName: "Bob"},
	}
	if _, err := d.Send(context.Background(), chat, members, Options{Emoji: "🔥"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := fa.sent[0].text
	want := "🔥 @alice 🔥 Bob"
	if got != want {
		t.Fatalf("batch text = %q, want %q", got, want)
	}
}

func TestSendPacing(t *testing.T) {
	t.Parallel()
	fa := &fakeSender{}
	d := New(fa, logx.Nop())

	const delay = 60 * time.Millisecond
	start := time.Now()
	if _, err := d.Send(context.Background(), chat, makeMembers(25), Options{
		BatchSize: 10,
		Delay:     delay,
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// 3 batches mean exactly 2 gaps: the first batch is immediate.
	elapsed := time.Since(start)
	if elapsed < 2*delay {
		t.Fatalf("elapsed = %v, want at least %v (2 gaps)", elapsed, 2*delay)
	}
	if elapsed >= 3*delay {
		t.Fatalf("elapsed = %v, want under %v (a 3rd gap must not occur)", elapsed, 3*delay)
	}
}

func TestSendFailFast(t *testing.T) {
	t.Parallel()
	fa := &fakeSender{failAt: 2}
	d := New(fa, logx.Nop())

	sent, err := d.Send(context.Background(), chat, makeMembers(30), Options{
		BatchSize: 10,
		Delay:     time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error from failing batch")
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1 (delivery aborts at first failure)", sent)
	}
	if len(fa.stamps) != 2 {
		t.Fatalf("send attempts = %d, want 2", len(fa.stamps))
	}
}

func TestSendAnnouncementAndReply(t *testing.T) {
	t.Parallel()
	ref := &transport.MessageRef{ChatID: -100, MessageID: 7}

	t.Run("announcement carries the reply anchor", func(t *testing.T) {
		t.Parallel()
		fa := &fakeSender{}
		d := New(fa, logx.Nop())

		if _, err := d.Send(context.Background(), chat, makeMembers(3), Options{
			Announcement: "meeting in 5",
			ReplyTo:      ref,
		}); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if fa.sent[0].text != "📢 meeting in 5" {
			t.Fatalf("announcement = %q", fa.sent[0].text)
		}
		if fa.sent[0].replyTo == nil || fa.sent[0].replyTo.MessageID != 7 {
			t.Fatalf("announcement replyTo = %+v, want message 7", fa.sent[0].replyTo)
		}
		if fa.sent[1].replyTo != nil {
			t.Fatal("mention batch also got the reply anchor")
		}
	})

	t.Run("without announcement the first batch replies", func(t *testing.T) {
		t.Parallel()
		fa := &fakeSender{}
		d := New(fa, logx.Nop())

		if _, err := d.Send(context.Background(), chat, makeMembers(15), Options{
			BatchSize: 10,
			Delay:     time.Millisecond,
			ReplyTo:   ref,
		}); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if fa.sent[0].replyTo == nil || fa.sent[0].replyTo.MessageID != 7 {
			t.Fatalf("first batch replyTo = %+v, want message 7", fa.sent[0].replyTo)
		}
		if fa.sent[1].replyTo != nil {
			t.Fatal("second batch also got the reply anchor")
		}
	})
}

func TestSendNoMembersNoMessages(t *testing.T) {
	t.Parallel()
	fa := &fakeSender{}
	d := New(fa, logx.Nop())

	sent, err := d.Send(context.Background(), chat, nil, Options{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent != 0 || len(fa.sent) != 0 {
		t.Fatalf("sent = %d with %d messages, want none", sent, len(fa.sent))
	}
}
