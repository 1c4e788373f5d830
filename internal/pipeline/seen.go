package pipeline

import "sync"

// seenWindow tracks pools already evaluated so a token is matched against
// user configs at most once while tracked. Bounded FIFO: when the window is
// full the oldest key is evicted and its token becomes eligible again.
type seenWindow struct {
	mu    sync.Mutex
	max   int
	keys  map[string]struct{}
	order []string
}

func newSeenWindow(max int) *seenWindow {
	if max <= 0 {
		max = 1
	}
	return &seenWindow{
		max:  max,
		keys: make(map[string]struct{}, max),
	}
}

// MarkSeen records the key and reports whether it was new.
func (w *seenWindow) MarkSeen(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.keys[key]; ok {
		return false
	}

	if len(w.order) >= w.max {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.keys, oldest)
	}

	w.keys[key] = struct{}{}
	w.order = append(w.order, key)
	return true
}

// Len returns the number of tracked keys.
func (w *seenWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.keys)
}
