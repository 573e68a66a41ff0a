package broadcast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tagbot/internal/store"
	"tagbot/internal/transport"
	logx "tagbot/pkg/logx"
)

type fakeSender struct {
	sent     []int64 // chat ids in send order
	fail     map[int64]bool
	lastText string
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

func (f *fakeSender) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.lastText = text
	if f.fail[to.ChatID] {
		return transport.MessageRef{}, errors.New("forbidden: blocked by user")
	}
	f.sent = append(f.sent, to.ChatID)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(nil, logx.Nop())
	for _, u := range []struct {
		id   int64
		name string
	}{{1, "owner"}, {2, "alice"}, {3, "bob"}, {4, "carol"}, {5, "dave"}} {
		if err := st.UpsertUser(u.id, u.name, u.name); err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
	}
	for _, g := range []int64{-10, -20, -30} {
		if err := st.UpsertGroup(g, "group"); err != nil {
			t.Fatalf("UpsertGroup: %v", err)
		}
	}
	return st
}

func TestRunSkipsInvokerAndCountsAttempts(t *testing.T) {
	t.Parallel()
	fa := &fakeSender{}
	svc := New(fa, seedStore(t), time.Millisecond, logx.Nop())

	rep, err := svc.Run(context.Background(), "hello", 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 4 users (invoker skipped) + 3 groups.
	if rep.Total != 7 || rep.Sent != 7 {
		t.Fatalf("report = %+v, want 7/7", rep)
	}
	for _, id := range fa.sent {
		if id == 1 {
			t.Fatal("broadcast was sent to the invoker")
		}
	}
	if !strings.HasPrefix(fa.lastText, "📢 Broadcast:\nhello") {
		t.Fatalf("broadcast text = %q", fa.lastText)
	}
}

func TestRunContinuesPastFailures(t *testing.T) {
	t.Parallel()
	fa := &fakeSender{fail: map[int64]bool{3: true, -20: true}}
	svc := New(fa, seedStore(t), time.Millisecond, logx.Nop())

	rep, err := svc.Run(context.Background(), "hello", 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Total != 7 || rep.Sent != 5 {
		t.Fatalf("report = %+v, want 5/7", rep)
	}
	// Targets after the failed ones must still receive the message.
	gotLast := fa.sent[len(fa.sent)-1]
	if gotLast != -10 {
		t.Fatalf("last delivered chat = %d, want -10 (groups sorted ascending)", gotLast)
	}
}

func TestRunCancelledMidway(t *testing.T) {
	t.Parallel()
	fa := &fakeSender{}
	svc := New(fa, seedStore(t), 50*time.Millisecond, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	rep, err := svc.Run(ctx, "hello", 1)
	if err == nil {
		t.Fatal("expected context error")
	}
	if rep.Sent >= rep.Total {
		t.Fatalf("report = %+v, want a partial run", rep)
	}
}
