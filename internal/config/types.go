package config

import "time"

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Tagging   TaggingConfig   `json:"tagging"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Health    HealthConfig    `json:"health,omitempty"`
	Backup    BackupConfig    `json:"backup,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file; the TELEGRAM_BOT_TOKEN
	// environment variable takes precedence either way.
	Token string `json:"token,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// GroupLog is an optional chat id for the Telegram log sink.
	GroupLog int64 `json:"group_log,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the persistence layer.
//
// Driver values:
//   - "file" (default): single JSON state file, atomically rewritten
//   - "sqlite": state record in a SQLite file (requires the sqlite build tag)
//   - "none": in-memory only (state is lost on restart)
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TaggingConfig tunes the roster discovery sweep and batch delivery.
//
// All durations are Go duration strings.
type TaggingConfig struct {
	BatchSize  int    `json:"batch_size,omitempty"`  // default 10
	BatchDelay string `json:"batch_delay,omitempty"` // default "500ms"
	ProbeEvery int    `json:"probe_every,omitempty"` // pause after this many probes; default 5
	ProbePause string `json:"probe_pause,omitempty"` // default "100ms"
}

type BroadcastConfig struct {
	Delay string `json:"delay,omitempty"` // per-recipient pacing; default "100ms"
}

type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8080"
}

// BackupConfig controls the scheduled state snapshot.
type BackupConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // cron spec; default "0 3 * * *"
	Path     string `json:"path,omitempty"`     // default "<storage path>.bak"
}

// Defaults used across the config when fields are omitted.
const (
	DefaultBatchSize   = 10
	DefaultBatchDelay  = 500 * time.Millisecond
	DefaultProbeEvery  = 5
	DefaultProbePause  = 100 * time.Millisecond
	DefaultBcastDelay  = 100 * time.Millisecond
	DefaultPollTimeout = 10 * time.Second
)
