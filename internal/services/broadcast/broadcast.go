// Package broadcast fans a message out to every known private chat and
// group. Unlike mention dispatch it is best-effort per target: users block
// bots and groups evict them all the time, so individual failures are
// logged and skipped rather than aborting the run.
package broadcast

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"tagbot/internal/store"
	"tagbot/internal/transport"
	logx "tagbot/pkg/logx"
)

const DefaultDelay = 100 * time.Millisecond

type Report struct {
	Sent  int
	Total int
}

type Service struct {
	adapter transport.Adapter
	store   *store.Store
	delay   time.Duration
	log     logx.Logger
}

func New(adapter transport.Adapter, st *store.Store, delay time.Duration, log logx.Logger) *Service {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{adapter: adapter, store: st, delay: delay, log: log}
}

// Run sends text to every known user except the invoker, then to every
// known group. Total counts attempted targets, Sent the successes.
func (s *Service) Run(ctx context.Context, text string, invoker int64) (Report, error) {
	msg := "📢 Broadcast:\n" + text
	lim := rate.NewLimiter(rate.Every(s.delay), 1)

	var targets []int64
	for _, id := range s.store.AllUsers() {
		if id == invoker {
			continue
		}
		targets = append(targets, id)
	}
	targets = append(targets, s.store.AllGroups()...)

	rep := Report{Total: len(targets)}
	for _, chatID := range targets {
		if err := lim.Wait(ctx); err != nil {
			return rep, err
		}
		if _, err := s.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, msg, nil); err != nil {
			s.log.Warn("broadcast target failed", logx.Int64("chat_id", chatID), logx.Err(err))
			continue
		}
		rep.Sent++
	}

	s.log.Info("broadcast finished", logx.Int("sent", rep.Sent), logx.Int("total", rep.Total))
	return rep, nil
}
