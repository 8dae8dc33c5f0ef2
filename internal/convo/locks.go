package convo

import "sync"

// identityQueue runs tasks for the same key one at a time, in submission
// order. Tasks for different keys run concurrently.
type identityQueue struct {
	mu      sync.Mutex
	active  map[string]bool
	pending map[string][]func()
}

func newIdentityQueue() *identityQueue {
	return &identityQueue{
		active:  make(map[string]bool),
		pending: make(map[string][]func()),
	}
}

// Do schedules the task. When no task for the key is in flight it starts a
// worker goroutine; otherwise the task waits its turn.
func (q *identityQueue) Do(key string, task func()) {
	q.mu.Lock()
	if q.active[key] {
		q.pending[key] = append(q.pending[key], task)
		q.mu.Unlock()
		return
	}
	q.active[key] = true
	q.mu.Unlock()

	go q.run(key, task)
}

func (q *identityQueue) run(key string, task func()) {
	for {
		task()

		q.mu.Lock()
		next := q.pending[key]
		if len(next) == 0 {
			delete(q.active, key)
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		task = next[0]
		q.pending[key] = next[1:]
		q.mu.Unlock()
	}
}
