// Package sqlite exposes the SQLite backend to programs that embed the
// stockroom engine. The implementation lives in internal/sqlite.
package sqlite

import (
	"github.com/mesh-intelligence/stockroom/internal/sqlite"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// Backend is a persistence port that keeps the change log and must be
// attached to a data directory before use.
type Backend interface {
	types.Persistence
	types.ChangeSink
	types.Closer

	// Attach opens the data directory in config.DataDir, creating the
	// JSONL files and database on first use.
	Attach(config types.Config) error
	// Detach releases the database. The backend may be attached again.
	Detach() error
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".stockroom-db",
//	})
//	defer backend.Detach()
func NewBackend() Backend {
	return sqlite.NewBackend()
}
