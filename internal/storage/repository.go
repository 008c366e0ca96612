// Package storage persists batch results. Backends live in subpackages and
// register themselves by kind; import storage/all to link every backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownBackend is returned by Open for an unregistered kind.
var ErrUnknownBackend = errors.New("storage: unknown backend")

// Config selects and configures a backend.
type Config struct {
	Kind          string // sqlite, postgres, mysql, mssql
	DSN           string
	RecordsTable  string
	FailuresTable string
	BatchSize     int
}

// Repository is what Save needs from a backend.
type Repository interface {
	// EnsureTables creates the records and findings tables when missing.
	EnsureTables(ctx context.Context, recordsTable, failuresTable string) error
	// CopyFrom bulk inserts rows aligned to columns and returns the number
	// of rows written.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Close() error
}

// Opener builds a Repository from a Config.
type Opener func(ctx context.Context, cfg Config) (Repository, error)

var (
	openMu  sync.RWMutex
	openers = map[string]Opener{}
)

// Register installs the opener for kind, replacing any previous one. Backends
// call it from init.
func Register(kind string, fn Opener) {
	openMu.Lock()
	defer openMu.Unlock()
	openers[kind] = fn
}

// Kinds lists registered backend kinds, sorted.
func Kinds() []string {
	openMu.RLock()
	defer openMu.RUnlock()
	out := make([]string, 0, len(openers))
	for k := range openers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open looks up the backend for cfg.Kind and opens it.
func Open(ctx context.Context, cfg Config) (Repository, error) {
	openMu.RLock()
	fn, ok := openers[cfg.Kind]
	openMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownBackend, cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return fn(ctx, cfg)
}
