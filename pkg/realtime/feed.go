// Package realtime keeps a live notification feed for a signed-in user: an
// initial load over HTTP merged with pushes from the backend's websocket.
package realtime

import (
	"sync"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/metrics"
)

// Feed is an ordered, most-recent-first notification list with an unread
// counter. The counter never goes below zero and only moves for items that
// actually change state. A Feed is safe for concurrent use; once closed it
// ignores every mutation.
type Feed struct {
	mu     sync.Mutex
	items  []aulasdk.Notification
	unread int
	closed bool

	// Pushes received since BeginLoad, consumed by Seed and SetUnread.
	seedPending  bool
	countPending bool
	pushedIDs    []string
	pushedUnread []string

	subs map[chan struct{}]struct{}
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[chan struct{}]struct{})}
}

// BeginLoad marks the start of an initial load. Pushes received from now on
// are kept by Seed and added on top of the count given to SetUnread.
func (f *Feed) BeginLoad() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seedPending, f.countPending = true, true
	f.pushedIDs, f.pushedUnread = nil, nil
}

// EndLoad stops tracking pushes for a load that did not complete.
func (f *Feed) EndLoad() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seedPending, f.countPending = false, false
	f.pushedIDs, f.pushedUnread = nil, nil
}

// Push prepends n. Unread pushes increment the counter by one. A
// notification already in the feed is ignored. Reports whether n was added.
func (f *Feed) Push(n aulasdk.Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.indexLocked(n.ID) >= 0 {
		return false
	}

	f.items = append([]aulasdk.Notification{n}, f.items...)
	if !n.Read {
		f.unread++
	}

	if f.seedPending {
		f.pushedIDs = append(f.pushedIDs, n.ID)
	}
	if f.countPending && !n.Read {
		f.pushedUnread = append(f.pushedUnread, n.ID)
	}

	f.changedLocked()
	return true
}

// Seed installs the result of the initial load. Items pushed while the load
// was pending that the load does not contain stay in front.
func (f *Feed) Seed(items []aulasdk.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	loaded := make(map[string]struct{}, len(items))
	for _, n := range items {
		loaded[n.ID] = struct{}{}
	}

	merged := make([]aulasdk.Notification, 0, len(items)+len(f.pushedIDs))
	if f.seedPending {
		pushed := make(map[string]struct{}, len(f.pushedIDs))
		for _, id := range f.pushedIDs {
			pushed[id] = struct{}{}
		}
		for _, n := range f.items {
			_, wasPushed := pushed[n.ID]
			_, inLoad := loaded[n.ID]
			if wasPushed && !inLoad {
				merged = append(merged, n)
			}
		}
	}

	seen := make(map[string]struct{}, len(items))
	for _, n := range items {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		merged = append(merged, n)
	}

	f.items = merged
	f.seedPending = false
	f.pushedIDs = nil
	f.changedLocked()
}

// SetUnread installs the server's unread count plus the unread pushes that
// arrived while the count was being fetched and are still unread.
func (f *Feed) SetUnread(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	if count < 0 {
		count = 0
	}

	if f.countPending {
		for _, id := range f.pushedUnread {
			if i := f.indexLocked(id); i >= 0 && !f.items[i].Read {
				count++
			}
		}
	}

	f.unread = count
	f.countPending = false
	f.pushedUnread = nil
	f.changedLocked()
}

// MarkRead flags one item as read. The counter only drops when the item was
// present and unread. Reports whether anything changed.
func (f *Feed) MarkRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexLocked(id)
	if f.closed || i < 0 || f.items[i].Read {
		return false
	}

	f.items[i].Read = true
	f.decLocked()
	f.changedLocked()
	return true
}

// MarkAllRead flags every item as read and zeroes the counter. Returns how
// many items changed.
func (f *Feed) MarkAllRead() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0
	}

	changed := 0
	for i := range f.items {
		if !f.items[i].Read {
			f.items[i].Read = true
			changed++
		}
	}
	f.unread = 0
	f.changedLocked()
	return changed
}

// Remove drops an item, decrementing the counter if it was unread. Reports
// whether the item was present.
func (f *Feed) Remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexLocked(id)
	if f.closed || i < 0 {
		return false
	}

	wasUnread := !f.items[i].Read
	f.items = append(f.items[:i:i], f.items[i+1:]...)
	if wasUnread {
		f.decLocked()
	}
	f.changedLocked()
	return true
}

// Snapshot returns a copy of the items, most recent first.
func (f *Feed) Snapshot() []aulasdk.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]aulasdk.Notification, len(f.items))
	copy(out, f.items)
	return out
}

// Unread returns the unread counter.
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// Subscribe returns a channel that receives a value after changes. Bursts of
// changes may be coalesced. The channel is closed when the feed closes or
// cancel is called.
func (f *Feed) Subscribe() (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan struct{}, 1)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
	}
}

// Close stops the feed. Later mutations are ignored.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}

func (f *Feed) indexLocked(id string) int {
	for i := range f.items {
		if f.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *Feed) decLocked() {
	if f.unread > 0 {
		f.unread--
	}
}

func (f *Feed) changedLocked() {
	metrics.NotificationsUnread.Set(float64(f.unread))
	for ch := range f.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
