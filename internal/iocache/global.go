package iocache

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/schema"
)

// Global Manager instance for main logic.
var (
	Manager   = &StoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// OpenStores opens the policy cache and history stores. An empty backend
// leaves the corresponding store unset.
func OpenStores(cacheBackend schema.DatabaseBackend, cacheConnStr string, historyBackend schema.DatabaseBackend, historyConnStr string) (*StoreManager, error) {
	mgr := &StoreManager{}
	if cacheBackend != "" {
		store, err := NewCacheStore(policyCacheTable, cacheBackend, cacheConnStr)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize policy cache: %w", err)
		}
		mgr.policy = store
	}
	if historyBackend != "" {
		store, err := NewHistoryStore(historyBackend, historyConnStr)
		if err != nil {
			mgr.Close()
			return nil, fmt.Errorf("failed to initialize history store: %w", err)
		}
		mgr.history = store
	}
	return mgr, nil
}

// InitStores initializes the global Manager exactly once.
func InitStores(cacheBackend schema.DatabaseBackend, cacheConnStr string, historyBackend schema.DatabaseBackend, historyConnStr string) error {
	var initErr error
	initOnce.Do(func() {
		mgr, err := OpenStores(cacheBackend, cacheConnStr, historyBackend, historyConnStr)
		if err != nil {
			initErr = err
			return
		}
		Manager.Lock()
		Manager.policy, Manager.history = mgr.policy, mgr.history
		Manager.Unlock()
	})
	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() {
	closeOnce.Do(Manager.Close)
}

// ClearCache removes the policy cache. SQLite deletes the database file,
// MySQL and PostgreSQL drop the table.
func ClearCache(backend schema.DatabaseBackend, connStr string) error {
	return clearBackend(backend, connStr, contract.GetDBFilePath(), policyCacheTable)
}

// ClearHistory removes all history data, including the migration version.
func ClearHistory(backend schema.DatabaseBackend, connStr string) error {
	return clearBackend(backend, connStr, contract.GetHistoryDBFilePath(), fileResultsTable, runsTable, migrationsTable)
}

func clearBackend(backend schema.DatabaseBackend, connStr, defaultPath string, tables ...string) error {
	switch backend {
	case schema.NoneBackend:
		return nil
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = defaultPath
		}
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbPath, err)
		}
		return nil
	case schema.MySQLBackend, schema.PostgreSQLBackend:
		db, err := openDB(backend, connStr, "")
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		for _, table := range tables {
			if err := dropTable(db, backend, table); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported backend for clearing: %s", backend)
	}
}

func dropTable(db *sql.DB, backend schema.DatabaseBackend, table string) error {
	if err := validateTableName(table); err != nil {
		return err
	}
	if _, err := db.Exec("DROP TABLE IF EXISTS " + quoteTableName(table, backend)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}
