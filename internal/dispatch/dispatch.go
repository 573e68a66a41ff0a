// Package dispatch turns a member roster into paced mention messages.
// Telegram throttles chats that receive bursts, so members are split into
// fixed-size batches with a mandatory gap between consecutive sends.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tagbot/internal/transport"
	logx "tagbot/pkg/logx"
)

const (
	DefaultBatchSize = 10
	DefaultDelay     = 500 * time.Millisecond
)

type Options struct {
	BatchSize int
	Delay     time.Duration
	// Emoji prefixes every mention token.
	Emoji string
	// Announcement, when non-empty, is sent as a "📢 "-prefixed message
	// before the mention batches.
	Announcement string
	// ReplyTo anchors the announcement (or, without one, the first batch)
	// to the invoking message.
	ReplyTo *transport.MessageRef
}

func (o *Options) normalize() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Delay <= 0 {
		o.Delay = DefaultDelay
	}
}

type Dispatcher struct {
	adapter transport.Adapter
	log     logx.Logger
}

func New(adapter transport.Adapter, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{adapter: adapter, log: log}
}

// Send delivers mention batches for members to chat and returns how many
// messages went out. Delivery is fail-fast: the first send error aborts the
// remaining batches, since a failing chat will reject them too.
//
// For N batches exactly N-1 gaps elapse; the first batch is never delayed.
func (d *Dispatcher) Send(ctx context.Context, chat transport.ChatTarget, members []transport.Identity, opt Options) (int, error) {
	opt.normalize()

	sent := 0
	if opt.Announcement != "" {
		var so *transport.SendOptions
		if opt.ReplyTo != nil {
			so = &transport.SendOptions{ReplyTo: opt.ReplyTo}
		}
		if _, err := d.adapter.SendText(ctx, chat, "📢 "+opt.Announcement, so); err != nil {
			return 0, fmt.Errorf("announcement: %w", err)
		}
		sent++
	}

	// Burst 1: the first Wait passes immediately, every later one blocks
	// for the full gap.
	lim := rate.NewLimiter(rate.Every(opt.Delay), 1)

	batches := 0
	for start := 0; start < len(members); start += opt.BatchSize {
		end := start + opt.BatchSize
		if end > len(members) {
			end = len(members)
		}

		if err := lim.Wait(ctx); err != nil {
			return sent, err
		}

		text := renderBatch(members[start:end], opt.Emoji)
		var so *transport.SendOptions
		if batches == 0 && opt.Announcement == "" && opt.ReplyTo != nil {
			so = &transport.SendOptions{ReplyTo: opt.ReplyTo}
		}
		if _, err := d.adapter.SendText(ctx, chat, text, so); err != nil {
			return sent, fmt.Errorf("batch %d: %w", batches+1, err)
		}
		sent++
		batches++
	}

	d.log.Info("mentions dispatched",
		logx.Int64("chat_id", chat.ChatID),
		logx.Int("members", len(members)),
		logx.Int("batches", batches),
	)
	return sent, nil
}

// renderBatch joins one mention token per member. Usernames get a real
// @mention; the rest fall back to their first name, which Telegram still
// highlights when paired with the entity-free text form used here.
func renderBatch(members []transport.Identity, emoji string) string {
	tokens := make([]string, 0, len(members))
	for _, m := range members {
		if m.Username != "" {
			tokens = append(tokens, emoji+" @"+m.Username)
		} else {
			tokens = append(tokens, emoji+" "+m.FirstName)
		}
	}
	return strings.Join(tokens, " ")
}
