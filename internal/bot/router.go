package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"tagbot/internal/transport"
	logx "tagbot/pkg/logx"
)

// Request carries one inbound message through the middleware chain.
type Request struct {
	Message *transport.Message
	Chat    transport.ChatTarget
	Command string // empty for plain messages
	Args    []string
	Logger  logx.Logger
}

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger := log
					if req != nil && !req.Logger.IsZero() {
						logger = req.Logger
					}
					logger.Error("panic recovered",
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			logger := log
			if req != nil && !req.Logger.IsZero() {
				logger = req.Logger
			}
			err := next(ctx, req)
			d := time.Since(start)

			fields := []logx.Field{
				logx.Int64("chat_id", req.Chat.ChatID),
				logx.Int64("from_id", req.Message.From.ID),
				logx.String("cmd", req.Command),
				logx.Duration("dur", d),
			}
			if err != nil {
				logger.Warn("request failed", append(fields, logx.Any("err", err))...)
			} else {
				// Keep INFO useful: short successful requests go to DEBUG.
				if d >= 750*time.Millisecond {
					logger.Info("request ok", fields...)
				} else {
					logger.Debug("request ok", fields...)
				}
			}
			return err
		}
	}
}

const routerWorkers = 4

// route classifies one update and hands it to the middleware-wrapped
// handler. Runs on the worker pool, so handlers may block on network and
// rate-limit sleeps without stalling intake.
func (a *App) route(ctx context.Context, up transport.Update) {
	m := up.Message
	if m == nil || m.FromBot {
		return
	}

	req := &Request{
		Message: m,
		Chat:    transport.ChatTarget{ChatID: m.ChatID},
		Logger:  a.log.With(logx.Int64("chat_id", m.ChatID)),
	}

	var h HandlerFunc
	if cmd, args, ok := splitCommand(m.Text); ok {
		if fn, known := a.commands[cmd]; known {
			req.Command = cmd
			req.Args = args
			h = fn
		}
		// Unknown commands fall through to the observer: they still count
		// as user activity.
	}
	if h == nil {
		h = a.observe
	}

	if err := a.chain(h)(ctx, req); err != nil {
		req.Logger.Warn("handler error", logx.String("cmd", req.Command), logx.Err(err))
	}
}

func (a *App) chain(h HandlerFunc) HandlerFunc {
	return Chain(h, MWPanicRecover(a.log), MWRequestLog(a.log))
}

// reply sends text to the request's chat anchored to the triggering message.
func (a *App) reply(ctx context.Context, req *Request, text string) error {
	ref := &transport.MessageRef{ChatID: req.Chat.ChatID, MessageID: req.Message.ID}
	_, err := a.adapter.SendText(ctx, req.Chat, text, &transport.SendOptions{ReplyTo: ref})
	return err
}
