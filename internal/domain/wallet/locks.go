package wallet

import (
	"sort"
	"sync"
)

// walletLocks serializes operations on the same wallet inside one process.
// Row locks still guard the database across processes.
type walletLocks struct {
	mu    sync.Mutex
	locks map[int64]*walletLock
}

type walletLock struct {
	mu   sync.Mutex
	refs int
}

func newWalletLocks() *walletLocks {
	return &walletLocks{locks: make(map[int64]*walletLock)}
}

// acquire locks every distinct user id in ascending order and returns the
// matching unlock function.
func (l *walletLocks) acquire(userIDs ...int64) func() {
	ids := uniqueSorted(userIDs)
	held := make([]*walletLock, 0, len(ids))
	for _, id := range ids {
		l.mu.Lock()
		lk, ok := l.locks[id]
		if !ok {
			lk = &walletLock{}
			l.locks[id] = lk
		}
		lk.refs++
		l.mu.Unlock()

		lk.mu.Lock()
		held = append(held, lk)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, ids[i])
			}
			l.mu.Unlock()
		}
	}
}

func uniqueSorted(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
