// Package logx is a small structured logging facade over zerolog.
//
// It supports console, file, and (optionally) Telegram-chat sinks. The
// Telegram sink is rate-limited and never blocks the writer: over-rate or
// queue-full events are dropped.
package logx
