package ecs

// DeferredQueue collects handles whose removal must wait until no iteration
// over the owning store is in progress. Drain is called between turn phases.
type DeferredQueue struct {
	pending []Handle
	queued  map[Handle]struct{}
}

func NewDeferredQueue() *DeferredQueue {
	return &DeferredQueue{
		pending: make([]Handle, 0, 32),
		queued:  make(map[Handle]struct{}),
	}
}

// Push enqueues h once. Duplicate pushes before the next drain are ignored.
func (q *DeferredQueue) Push(h Handle) {
	if _, ok := q.queued[h]; ok {
		return
	}
	q.queued[h] = struct{}{}
	q.pending = append(q.pending, h)
}

// Pending reports whether h is waiting for removal.
func (q *DeferredQueue) Pending(h Handle) bool {
	_, ok := q.queued[h]
	return ok
}

func (q *DeferredQueue) Len() int { return len(q.pending) }

// Drain hands every queued handle to fn in push order and empties the queue.
// fn may push more handles; those are drained in the same call.
func (q *DeferredQueue) Drain(fn func(Handle)) {
	for len(q.pending) > 0 {
		batch := q.pending
		q.pending = make([]Handle, 0, cap(batch))
		for _, h := range batch {
			delete(q.queued, h)
			fn(h)
		}
	}
}
