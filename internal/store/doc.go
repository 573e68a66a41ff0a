// Package store owns the bot's durable state: known users and groups, the
// owner/admin set, AFK records, and settings.
//
// Every mutation is read-modify-persist: the in-memory state is updated
// first, then the whole record is flushed to the backend. A failed flush is
// reported (and logged by callers) but does not roll back the in-memory
// change; the session continues with degraded durability. Single-process,
// low write volume makes this acceptable.
package store
