// Package iocache persists compiled policy maps and check history in SQL databases.
package iocache

import (
	"sync"

	"github.com/openpreserve/flint/internal/contract"
)

// StoreManager holds the policy cache store and the history store.
// Either may be nil when its backend is not configured.
type StoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	policy       contract.CacheStore
	history      contract.HistoryStore
}

var _ contract.CacheManager = &StoreManager{} // Compile-time check

// GetPolicyStore returns the policy CacheStore.
func (mgr *StoreManager) GetPolicyStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.policy
}

// GetHistoryStore returns the HistoryStore.
func (mgr *StoreManager) GetHistoryStore() contract.HistoryStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.history
}

// Close closes every configured store.
func (mgr *StoreManager) Close() {
	mgr.Lock()
	defer mgr.Unlock()
	if mgr.policy != nil {
		_ = mgr.policy.Close()
		mgr.policy = nil
	}
	if mgr.history != nil {
		_ = mgr.history.Close()
		mgr.history = nil
	}
}
