package localstore

import (
	"errors"
	"os"
)

// recentRecipientsKey is the store key holding the recent-recipients log.
const recentRecipientsKey = "recent_gift_recipients"

// RecentLogCap is the maximum number of identity keys kept in the log.
const RecentLogCap = 5

// RecentLog is the capped, most-recent-first log of gifted identity keys.
// It is read-modify-write without locking; the log is advisory, not
// correctness-critical.
type RecentLog struct {
	store *Store
	cap   int
}

// NewRecentLog returns a RecentLog backed by store with the default cap.
func NewRecentLog(store *Store) *RecentLog {
	return &RecentLog{store: store, cap: RecentLogCap}
}

// Keys returns the logged identity keys, most recent first. A missing or
// unreadable log reads as empty.
func (l *RecentLog) Keys() []string {
	var keys []string
	if err := l.store.Get(recentRecipientsKey, &keys); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return nil
	}
	return keys
}

// Push inserts key at the head, removing any existing occurrence first and
// evicting the oldest entry past the cap.
func (l *RecentLog) Push(key string) error {
	existing := l.Keys()
	next := make([]string, 0, l.cap)
	next = append(next, key)
	for _, k := range existing {
		if k == key {
			continue
		}
		next = append(next, k)
		if len(next) == l.cap {
			break
		}
	}
	return l.store.Put(recentRecipientsKey, next)
}

// Contains reports whether key is present in the log.
func (l *RecentLog) Contains(key string) bool {
	for _, k := range l.Keys() {
		if k == key {
			return true
		}
	}
	return false
}
