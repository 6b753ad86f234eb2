package realtime

import (
	"errors"
	"sync"
)

var (
	// ErrSubscriberClosed is returned by Send once a subscriber went away.
	ErrSubscriberClosed = errors.New("subscriber closed")
	// ErrSubscriberSlow is returned by Send when the outbound buffer is full.
	ErrSubscriberSlow = errors.New("subscriber outbound buffer full")
)

// Subscriber is a connected viewer of one room. Send must not block: it
// either queues the payload or fails.
type Subscriber interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// room holds the members of one wishlist. mu guards members and dead;
// publishMu serializes publishes so every member sees them in call order.
type room struct {
	mu        sync.Mutex
	members   map[Subscriber]struct{}
	dead      bool
	publishMu sync.Mutex
}

func newRoom() *room {
	return &room{members: make(map[Subscriber]struct{})}
}

func (r *room) snapshot() []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscriber, 0, len(r.members))
	for s := range r.members {
		out = append(out, s)
	}
	return out
}

// Registry maps room ids to their live subscribers. The registry lock only
// guards the map of rooms; membership changes take the room's own lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	// onChange, when set, is told about room and subscriber count changes.
	onChange func(rooms int, delta int)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

func (reg *Registry) lookup(roomID string) *room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[roomID]
}

// live returns the current room for roomID, creating it or replacing a room
// that was emptied but not yet detached.
func (reg *Registry) live(roomID string) *room {
	if r := reg.lookup(roomID); r != nil {
		return r
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[roomID]; ok {
		return r
	}
	r := newRoom()
	reg.rooms[roomID] = r
	return r
}

func (reg *Registry) replaceDead(roomID string, dead *room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.rooms[roomID] == dead {
		reg.rooms[roomID] = newRoom()
	}
}

// Subscribe adds sub to roomID, creating the room on first use. Adding the
// same subscriber twice is a no-op.
func (reg *Registry) Subscribe(roomID string, sub Subscriber) {
	for {
		r := reg.live(roomID)

		r.mu.Lock()
		if r.dead {
			r.mu.Unlock()
			reg.replaceDead(roomID, r)
			continue
		}
		_, existed := r.members[sub]
		r.members[sub] = struct{}{}
		r.mu.Unlock()

		if !existed {
			reg.notify(1)
		}
		return
	}
}

// Unsubscribe removes sub from roomID and drops the room once it is empty.
// It reports whether sub was a member.
func (reg *Registry) Unsubscribe(roomID string, sub Subscriber) bool {
	r := reg.lookup(roomID)
	if r == nil {
		return false
	}

	r.mu.Lock()
	_, existed := r.members[sub]
	delete(r.members, sub)
	empty := len(r.members) == 0 && !r.dead
	if empty {
		r.dead = true
	}
	r.mu.Unlock()

	if empty {
		reg.mu.Lock()
		if reg.rooms[roomID] == r {
			delete(reg.rooms, roomID)
		}
		reg.mu.Unlock()
	}
	if existed {
		reg.notify(-1)
	}
	return existed
}

// Snapshot returns the subscribers of roomID at call time.
func (reg *Registry) Snapshot(roomID string) []Subscriber {
	r := reg.lookup(roomID)
	if r == nil {
		return nil
	}
	return r.snapshot()
}

// Rooms returns the number of rooms with at least one subscriber.
func (reg *Registry) Rooms() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Subscribers returns the number of subscribers in roomID.
func (reg *Registry) Subscribers(roomID string) int {
	r := reg.lookup(roomID)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (reg *Registry) notify(delta int) {
	if reg.onChange == nil {
		return
	}
	reg.onChange(reg.Rooms(), delta)
}
