//go:build !sqlite
// +build !sqlite

package store

import "errors"

// Built without the sqlite tag; keep the binary dependency-free by default.
func openSQLite(Config) (Backend, error) {
	return nil, errors.New("sqlite storage driver not built in (rebuild with -tags sqlite)")
}
