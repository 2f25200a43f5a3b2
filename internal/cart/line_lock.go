package cart

import (
	"sync"

	"github.com/google/uuid"
)

// lineLock serializes mutations per user+product so two concurrent quantity
// changes on the same line cannot interleave between read and write. Entries
// are reference counted and dropped once the last holder releases.
type lineLock struct {
	mu    sync.Mutex
	locks map[string]*lineLockEntry
}

type lineLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLineLock() *lineLock {
	return &lineLock{locks: make(map[string]*lineLockEntry)}
}

func (l *lineLock) lock(key string) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lineLockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()
	entry.mu.Lock()
}

func (l *lineLock) unlock(key string) {
	l.mu.Lock()
	entry := l.locks[key]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
	entry.mu.Unlock()
}

// lineKey scopes the lock to a user's line. Cart-wide operations pass uuid.Nil
// as the product.
func lineKey(userID, productID uuid.UUID) string {
	return userID.String() + "|" + productID.String()
}
