package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

// DatabaseFile is the name of the database file inside Config.DataDir.
const DatabaseFile = "cortex.db"

var _ types.Store = (*Backend)(nil)

// Backend implements types.Store on a SQLite database.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	path     string
	db       *sql.DB
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens the database described by config, applies connection
// pragmas and migrates the schema. DataDir is created if it does not exist;
// types.InMemory selects a private in-memory database.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	path := types.InMemory
	if !config.IsInMemory() {
		dataDir := config.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
		path = filepath.Join(dataDir, DatabaseFile)
	}

	db, err := sql.Open("sqlite", dsn(path, config))
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if config.IsInMemory() {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("opening %s: %w", path, err)
	}

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return fmt.Errorf("migrating %s: %w", path, err)
	}

	b.db, b.path, b.config, b.attached = db, path, config, true
	log.WithFields(log.Fields{
		"path":         path,
		"journal_mode": config.GetJournalMode(),
		"synchronous":  config.GetSynchronous(),
	}).Info("attached store")
	return nil
}

// Detach closes the database. After Detach, Update and View return
// ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", b.path, err)
	}
	log.WithFields(log.Fields{"path": b.path}).Info("detached store")
	b.db, b.attached = nil, false
	return nil
}

// Update runs fn in a read-write transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
func (b *Backend) Update(fn func(tx types.Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrDetached
	}
	return inTx(b.db, true, fn)
}

// View runs fn in a transaction that is always rolled back.
func (b *Backend) View(fn func(tx types.Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrDetached
	}
	return inTx(b.db, false, fn)
}

// DB returns the underlying database handle, or nil when detached.
func (b *Backend) DB() *sql.DB {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.db
}

// Path returns the database path, or types.InMemory.
func (b *Backend) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.path
}

func inTx(db *sql.DB, commit bool, fn func(tx types.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if !commit {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// dsn builds a connection string whose pragmas the driver applies to every
// new connection.
func dsn(path string, config types.Config) string {
	return fmt.Sprintf(
		"%s?_pragma=foreign_keys(1)&_pragma=journal_mode(%s)&_pragma=synchronous(%s)&_pragma=busy_timeout(%d)",
		path, config.GetJournalMode(), config.GetSynchronous(), config.GetBusyTimeoutMS(),
	)
}
