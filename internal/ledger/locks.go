package ledger

import (
	"fmt"
	"sort"
	"sync"
)

// balanceLocks serializes ledger commits per (depot, item) account so two
// concurrent writers cannot both observe sufficient stock and both commit.
// Locks are acquired in sorted key order to avoid deadlock between commits
// touching overlapping account sets.
type balanceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newBalanceLocks() *balanceLocks {
	return &balanceLocks{locks: make(map[string]*sync.Mutex)}
}

func accountKey(depotID, itemID uint) string {
	return fmt.Sprintf("%d/%d", depotID, itemID)
}

func (b *balanceLocks) get(key string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.locks[key]
	if !ok {
		m = &sync.Mutex{}
		b.locks[key] = m
	}
	return m
}

// acquire locks every key and returns a release func. Duplicate keys are
// collapsed first; locking the same mutex twice would self-deadlock.
func (b *balanceLocks) acquire(keys []string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Strings(uniq)

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, k := range uniq {
		m := b.get(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
