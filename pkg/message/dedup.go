package message

import (
	"container/list"
	"sync"
)

const defaultDedupWindow = 4096

// Deduper remembers recently seen message IDs. High-priority messages are
// delivered over both transports, so receivers must treat a repeated ID
// as already handled.
type Deduper struct {
	mu     sync.Mutex
	window int
	seen   map[string]*list.Element
	order  *list.List
}

func NewDeduper(window int) *Deduper {
	if window <= 0 {
		window = defaultDedupWindow
	}

	return &Deduper{
		window: window,
		seen:   make(map[string]*list.Element),
		order:  list.New(),
	}
}

// Seen records the ID and reports whether it was already present.
func (d *Deduper) Seen(id string) bool {
	if id == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	d.seen[id] = d.order.PushBack(id)
	if d.order.Len() > d.window {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}

	return false
}

// Len returns the number of remembered IDs.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.order.Len()
}
