// Package presence tracks which connection each user is reachable on and which
// users are online. Both live behind one lock, so a user is online exactly when
// it has a connection entry.
package presence

import (
	"slices"
	"sync"
)

// Directory maps user ids to their current connection id and keeps the online set.
// The zero value is not usable; call NewDirectory.
type Directory struct {
	mu     sync.RWMutex
	conns  map[string]string
	online map[string]struct{}
}

func NewDirectory() *Directory {
	return &Directory{
		conns:  make(map[string]string),
		online: make(map[string]struct{}),
	}
}

// Register points userID at connID, replacing any previous connection, and marks
// the user online. It returns the replaced connection id, if any.
func (d *Directory) Register(userID, connID string) (previous string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	previous = d.conns[userID]
	d.conns[userID] = connID
	d.markOnline(userID)
	return previous
}

// Unregister removes userID whatever connection it is on.
func (d *Directory) Unregister(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.conns, userID)
	d.markOffline(userID)
}

// Release removes userID only while it still points at connID. It reports
// whether an entry was removed; a stale connection closing after its user
// reconnected elsewhere releases nothing.
func (d *Directory) Release(userID, connID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.conns[userID]
	if !ok || current != connID {
		return false
	}
	delete(d.conns, userID)
	d.markOffline(userID)
	return true
}

// Resolve maps each user id to its connection id. The result is positional and
// has "" for users without a connection.
func (d *Directory) Resolve(userIDs []string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, len(userIDs))
	for i, id := range userIDs {
		out[i] = d.conns[id]
	}
	return out
}

func (d *Directory) Lookup(userID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	connID, ok := d.conns[userID]
	return connID, ok
}

// Snapshot returns the online user ids sorted ascending. It never returns nil.
func (d *Directory) Snapshot() []string {
	d.mu.RLock()
	out := make([]string, 0, len(d.online))
	for id := range d.online {
		out = append(out, id)
	}
	d.mu.RUnlock()

	slices.Sort(out)
	return out
}

func (d *Directory) IsOnline(userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.online[userID]
	return ok
}

func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.online)
}

// markOnline and markOffline expect d.mu to be held for writing.
func (d *Directory) markOnline(userID string) {
	d.online[userID] = struct{}{}
}

func (d *Directory) markOffline(userID string) {
	delete(d.online, userID)
}
