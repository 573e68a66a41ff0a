package store

import (
	"errors"
	"strings"
	"time"

	logx "tagbot/pkg/logx"
)

// Config configures the persistence backend.
//
// Driver values:
//   - "file" (default): single JSON state file, rewritten atomically
//   - "sqlite": state record in a SQLite file (requires the sqlite build tag)
//
// If Driver is "none", state is held in memory only.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured backend and wraps it in a Store.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "none":
		return New(nil, log), nil
	case "", "file":
		b, err := openFile(cfg)
		if err != nil {
			return nil, err
		}
		return New(b, log), nil
	case "sqlite", "sqlite3":
		b, err := openSQLite(cfg)
		if err != nil {
			return nil, err
		}
		return New(b, log), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
