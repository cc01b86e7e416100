package emu

import (
	"container/heap"
	"log"
)

// SyncTag discriminates the purposes a single Schedulable may register sync
// points for. The set of tags is fixed per device type.
type SyncTag int

// A Schedulable is a device that can be notified "advance your internal
// state as if time t has arrived".
//
// A sync point is always constrained to one Schedulable: it can only be
// registered by its owner and, when it fires, only directly modifies that
// owner.
type Schedulable interface {
	// SchedName identifies the device in logs and traces.
	SchedName() string

	// ExecuteUntil resumes the device at time t for the callback registered
	// under tag.
	ExecuteUntil(t VTime, tag SyncTag)
}

// A SyncPoint is a pending future callback, tagged with its owner and
// purpose. The scheduler is the sole owner of sync points; devices refer to
// theirs only by tag.
type SyncPoint struct {
	Time  VTime
	Owner Schedulable
	Tag   SyncTag

	seq       uint64
	cancelled bool
}

type ownerTag struct {
	owner Schedulable
	tag   SyncTag
}

// A Scheduler keeps the time-ordered collection of pending sync points and
// fires them when the driving emulation loop advances virtual time. It never
// runs anything in the background.
type Scheduler struct {
	HookableBase

	now     VTime
	queue   syncPointHeap
	pending map[ownerTag]*SyncPoint
	seq     uint64
}

// NewScheduler creates a Scheduler with its clock at zero.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		pending: make(map[ownerTag]*SyncPoint),
	}
	heap.Init(&s.queue)

	return s
}

// Now returns the time the scheduler has advanced to. During a callback it
// is the fire time of that callback.
func (s *Scheduler) Now() VTime {
	return s.now
}

// SetSyncPoint registers a callback to fire at time t. Registering a second
// sync point for the same (owner, tag) pair, or one in the past, is a
// programming error.
func (s *Scheduler) SetSyncPoint(owner Schedulable, tag SyncTag, t VTime) {
	key := ownerTag{owner, tag}
	if _, ok := s.pending[key]; ok {
		log.Panicf("%s: sync point %d is already pending", owner.SchedName(), tag)
	}
	if t < s.now {
		log.Panicf("%s: scheduling sync point %d earlier than current time",
			owner.SchedName(), tag)
	}

	s.seq++
	sp := &SyncPoint{Time: t, Owner: owner, Tag: tag, seq: s.seq}
	s.pending[key] = sp
	heap.Push(&s.queue, sp)
}

// RemoveSyncPoint cancels a pending callback. It is a no-op if none is
// pending.
func (s *Scheduler) RemoveSyncPoint(owner Schedulable, tag SyncTag) {
	key := ownerTag{owner, tag}
	sp, ok := s.pending[key]
	if !ok {
		return
	}

	sp.cancelled = true
	delete(s.pending, key)
}

// PendingSyncPoint reports whether a callback is outstanding for the
// (owner, tag) pair.
func (s *Scheduler) PendingSyncPoint(owner Schedulable, tag SyncTag) bool {
	_, ok := s.pending[ownerTag{owner, tag}]
	return ok
}

// TimeTill returns the remaining time before the (owner, tag) callback
// fires. Lazy signals use it to ask "are we past the threshold yet" without
// waiting for the callback itself. Querying a tag with nothing pending is a
// programming error.
func (s *Scheduler) TimeTill(owner Schedulable, tag SyncTag, now VTime) Duration {
	sp, ok := s.pending[ownerTag{owner, tag}]
	if !ok {
		log.Panicf("%s: no sync point pending for tag %d", owner.SchedName(), tag)
	}
	if sp.Time <= now {
		return 0
	}

	return sp.Time.Sub(now)
}

// SyncPointTime returns the fire time of the pending (owner, tag) callback,
// if any. Snapshots use it to persist in-flight timers.
func (s *Scheduler) SyncPointTime(owner Schedulable, tag SyncTag) (VTime, bool) {
	sp, ok := s.pending[ownerTag{owner, tag}]
	if !ok {
		return 0, false
	}

	return sp.Time, true
}

// AdvanceTo fires, in increasing (time, registration) order, every sync
// point due at or before now. Sync points registered by a firing callback
// are only eligible on a later AdvanceTo call, never re-entrantly within the
// same flush. Cancellations performed by a firing callback are honored
// within the flush.
func (s *Scheduler) AdvanceTo(now VTime) {
	if now < s.now {
		log.Panic("cannot advance the scheduler backwards")
	}

	due := s.popDue(now)
	for _, sp := range due {
		if sp.cancelled {
			continue
		}

		delete(s.pending, ownerTag{sp.Owner, sp.Tag})
		// A deferred registration can carry a fire time below the previous
		// flush target; Now() must never move backwards for it.
		if sp.Time > s.now {
			s.now = sp.Time
		}

		ctx := HookCtx{Domain: s, Pos: HookPosBeforeFire, Item: sp}
		s.InvokeHook(ctx)

		sp.Owner.ExecuteUntil(sp.Time, sp.Tag)

		ctx.Pos = HookPosAfterFire
		s.InvokeHook(ctx)
	}

	s.now = now
}

func (s *Scheduler) popDue(now VTime) []*SyncPoint {
	var due []*SyncPoint
	for s.queue.Len() > 0 && s.queue[0].Time <= now {
		due = append(due, heap.Pop(&s.queue).(*SyncPoint))
	}

	return due
}

// syncPointHeap orders sync points by fire time, breaking ties by
// registration order.
type syncPointHeap []*SyncPoint

func (h syncPointHeap) Len() int {
	return len(h)
}

func (h syncPointHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].seq < h[j].seq
}

func (h syncPointHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *syncPointHeap) Push(x interface{}) {
	*h = append(*h, x.(*SyncPoint))
}

func (h *syncPointHeap) Pop() interface{} {
	old := *h
	n := len(old)
	sp := old[n-1]
	*h = old[0 : n-1]
	return sp
}
