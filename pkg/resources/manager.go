package resources

import (
	"sort"
	"sync"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/log"
	"github.com/cuemby/agvkernel/pkg/metrics"
	"github.com/rs/zerolog"
)

// pendingRequest is a queued allocation request awaiting a grant.
type pendingRequest struct {
	user    int64
	desired kerneltypes.ResourceSet
	onGrant func(kerneltypes.ResourceSet)
}

// Manager is the Scheduler / Resource Manager. One Manager instance
// arbitrates every claim in a kernel process; all access is serialised
// through mu.
type Manager struct {
	mu     sync.Mutex
	logger zerolog.Logger

	blocks []*kerneltypes.Block
	held   map[int64]kerneltypes.ResourceSet
	queue  []pendingRequest
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{
		logger: log.WithComponent("resources"),
		held:   make(map[int64]kerneltypes.ResourceSet),
	}
}

// SetBlocks installs the current block definitions used for transitive
// claim expansion. Called once after model load and again whenever the
// topology is reloaded.
func (m *Manager) SetBlocks(blocks []*kerneltypes.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = blocks
}

// expand returns desired plus every block member reachable by repeatedly
// following block membership to a fixed point: if any member of a block
// is in a claim, all members are added to that claim
// before arbitration".
func (m *Manager) expand(desired kerneltypes.ResourceSet) kerneltypes.ResourceSet {
	expanded := desired.Clone()
	changed := true
	for changed {
		changed = false
		for _, block := range m.blocks {
			touches := false
			for _, member := range block.Members {
				if expanded.Contains(member) {
					touches = true
					break
				}
			}
			if !touches {
				continue
			}
			for _, member := range block.Members {
				if !expanded.Contains(member) {
					expanded = append(expanded, member)
					changed = true
				}
			}
		}
	}
	return expanded
}

// heldByOthers returns the union of every resource held by a user other
// than exclude.
func (m *Manager) heldByOthers(exclude int64) kerneltypes.ResourceSet {
	var out kerneltypes.ResourceSet
	for user, set := range m.held {
		if user == exclude {
			continue
		}
		out = out.Union(set)
	}
	return out
}

// canGrant reports whether expanded can be granted to user right now: it
// must not intersect any other user's held set.
func (m *Manager) canGrant(user int64, expanded kerneltypes.ResourceSet) bool {
	return !expanded.Intersects(m.heldByOthers(user))
}

// hasQueuedLocked reports whether user already has a request waiting in the
// queue. Must be called with mu held.
func (m *Manager) hasQueuedLocked(user int64) bool {
	for _, req := range m.queue {
		if req.user == user {
			return true
		}
	}
	return false
}

func (m *Manager) grant(user int64, expanded kerneltypes.ResourceSet) {
	m.held[user] = m.held[user].Union(expanded)
	metrics.ResourceAllocationsGranted.Inc()
}

// Allocate requests desired for user. If it can be granted immediately
// (expanded against block closure, and disjoint from every other user's
// held set), it is granted synchronously and onGrant is invoked — but only
// after the Manager's lock is released, so the Manager never calls out
// while holding it. Otherwise the request is queued in FIFO order and
// onGrant is invoked later, from inside Free, once it becomes satisfiable.
//
// A user with a request already queued always queues again, whatever the
// new claim touches: the user's k-th request may only be granted after its
// (k-1)-th. Requests from other users are judged on their own claim alone,
// so contention in one corner of the plant never stalls a disjoint grant
// elsewhere.
func (m *Manager) Allocate(user int64, desired kerneltypes.ResourceSet, onGrant func(kerneltypes.ResourceSet)) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ResourceAllocationDuration)

	m.mu.Lock()
	expanded := m.expand(desired)
	if !m.hasQueuedLocked(user) && m.canGrant(user, expanded) {
		m.grant(user, expanded)
		m.mu.Unlock()
		if onGrant != nil {
			onGrant(m.snapshotFor(user))
		}
		return
	}

	m.queue = append(m.queue, pendingRequest{user: user, desired: desired, onGrant: onGrant})
	m.mu.Unlock()
	metrics.ResourceAllocationsQueued.Inc()
	m.logger.Debug().Int64("user", user).Msg("allocation request queued")
}

// AllocateAhead is the deadlock-avoidance entry point the Dispatcher uses
// to claim a vehicle's next step before freeing its previous step's
// resources: it behaves exactly like Allocate, granting immediately
// only when the new claim does not intersect any other user's held set,
// and queueing otherwise so a global, consistent request ordering
// prevents allocation cycles.
func (m *Manager) AllocateAhead(user int64, desired kerneltypes.ResourceSet, onGrant func(kerneltypes.ResourceSet)) {
	m.Allocate(user, desired, onGrant)
}

// AllocateNow grants desired immediately or fails; it never queues.
func (m *Manager) AllocateNow(user int64, desired kerneltypes.ResourceSet) (kerneltypes.ResourceSet, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ResourceAllocationDuration)

	m.mu.Lock()
	defer m.mu.Unlock()

	expanded := m.expand(desired)
	if !m.canGrant(user, expanded) {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrResourceAllocation, "resources held by another user", nil)
	}
	m.grant(user, expanded)
	return m.held[user].Clone(), nil
}

// Free releases subset from user's held resources, then processes the
// queue in FIFO order: every request that becomes satisfiable is granted,
// in the order the requests were queued. User ids play no part in that
// order.
func (m *Manager) Free(user int64, subset kerneltypes.ResourceSet) {
	var grants []pendingRequest

	m.mu.Lock()
	held := m.held[user]
	remaining := make(kerneltypes.ResourceSet, 0, len(held))
	for _, r := range held {
		if !subset.Contains(r) {
			remaining = append(remaining, r)
		}
	}
	if len(remaining) == 0 {
		delete(m.held, user)
	} else {
		m.held[user] = remaining
	}

	grants = m.processQueueLocked()
	m.mu.Unlock()

	for _, g := range grants {
		if g.onGrant != nil {
			g.onGrant(m.snapshotFor(g.user))
		}
	}
}

// FreeAll releases everything user holds.
func (m *Manager) FreeAll(user int64) {
	var grants []pendingRequest

	m.mu.Lock()
	delete(m.held, user)
	grants = m.processQueueLocked()
	m.mu.Unlock()

	for _, g := range grants {
		if g.onGrant != nil {
			g.onGrant(m.snapshotFor(g.user))
		}
	}
}

// processQueueLocked scans the queue in order, granting every request that
// is now satisfiable and not behind a still-blocked request of the same
// user, and returns the ones it granted so the caller can
// invoke their callbacks after releasing the lock. Must be called with mu
// held.
func (m *Manager) processQueueLocked() []pendingRequest {
	var granted []pendingRequest
	remaining := m.queue[:0:0]
	blocked := make(map[int64]bool)

	for _, req := range m.queue {
		expanded := m.expand(req.desired)
		if !blocked[req.user] && m.canGrant(req.user, expanded) {
			m.grant(req.user, expanded)
			granted = append(granted, req)
			continue
		}
		blocked[req.user] = true
		remaining = append(remaining, req)
	}
	m.queue = remaining
	return granted
}

// CancelRequest withdraws user's queued request matching desired, if any
// is still pending. Reports whether a request was removed.
func (m *Manager) CancelRequest(user int64, desired kerneltypes.ResourceSet) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, req := range m.queue {
		if req.user != user || !sameSet(req.desired, desired) {
			continue
		}
		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		return true
	}
	return false
}

func sameSet(a, b kerneltypes.ResourceSet) bool {
	if len(a) != len(b) {
		return false
	}
	for _, r := range a {
		if !b.Contains(r) {
			return false
		}
	}
	return true
}

// GetAllocations returns a defensive copy of every user's held resources.
func (m *Manager) GetAllocations() map[int64]kerneltypes.ResourceSet {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[int64]kerneltypes.ResourceSet, len(m.held))
	for user, set := range m.held {
		out[user] = set.Clone()
	}
	return out
}

// snapshotFor returns a defensive copy of user's held set. Must be called
// without mu held (it takes its own lock), since it's used from grant
// callbacks dispatched after Allocate/Free release the lock.
func (m *Manager) snapshotFor(user int64) kerneltypes.ResourceSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[user].Clone()
}

// queuedUsersSorted is a small test/debug helper returning the distinct
// users with a pending request, in queue order.
func (m *Manager) queuedUsersSorted() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[int64]bool)
	var out []int64
	for _, req := range m.queue {
		if !seen[req.user] {
			seen[req.user] = true
			out = append(out, req.user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
