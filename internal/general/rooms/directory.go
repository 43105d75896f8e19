package rooms

import (
	"sort"
	"sync"

	"delivery-dispatch/internal/general/contracts"
)

// Member is a live connection that can receive room events.
// Send must not block; it reports false when the event was dropped.
type Member interface {
	ID() string
	Send(ev contracts.Outbound) bool
}

// Observer sees every publish after fan-out.
type Observer interface {
	Published(room RoomID, ev contracts.Outbound, delivered int)
}

// Directory tracks which connections belong to which rooms.
type Directory struct {
	mu        sync.RWMutex
	rooms     map[RoomID]map[string]Member
	joined    map[string]map[RoomID]struct{}
	observers []Observer
}

func NewDirectory(observers ...Observer) *Directory {
	return &Directory{
		rooms:     make(map[RoomID]map[string]Member),
		joined:    make(map[string]map[RoomID]struct{}),
		observers: observers,
	}
}

// Join adds m to room. Joining twice is a no-op.
func (d *Directory) Join(m Member, room RoomID) {
	if m == nil || room.IsZero() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.rooms[room]
	if !ok {
		members = make(map[string]Member)
		d.rooms[room] = members
	}
	members[m.ID()] = m

	set, ok := d.joined[m.ID()]
	if !ok {
		set = make(map[RoomID]struct{})
		d.joined[m.ID()] = set
	}
	set[room] = struct{}{}
}

func (d *Directory) Leave(connID string, room RoomID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaveLocked(connID, room)
}

// LeaveAll removes the connection from every room and returns what it left.
func (d *Directory) LeaveAll(connID string) []RoomID {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := d.joined[connID]
	left := make([]RoomID, 0, len(set))
	for room := range set {
		left = append(left, room)
	}
	for _, room := range left {
		d.leaveLocked(connID, room)
	}
	return left
}

func (d *Directory) leaveLocked(connID string, room RoomID) {
	if members, ok := d.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(d.rooms, room)
		}
	}
	if set, ok := d.joined[connID]; ok {
		delete(set, room)
		if len(set) == 0 {
			delete(d.joined, connID)
		}
	}
}

// Publish hands ev to every current member of room without waiting on any of them.
// It returns how many members accepted the event.
func (d *Directory) Publish(room RoomID, ev contracts.Outbound) int {
	if room.IsZero() {
		return 0
	}

	d.mu.RLock()
	targets := make([]Member, 0, len(d.rooms[room]))
	for _, m := range d.rooms[room] {
		targets = append(targets, m)
	}
	d.mu.RUnlock()

	delivered := 0
	for _, m := range targets {
		if m.Send(ev) {
			delivered++
		}
	}

	for _, o := range d.observers {
		o.Published(room, ev, delivered)
	}
	return delivered
}

// Members lists connection ids in room, sorted.
func (d *Directory) Members(room RoomID) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.rooms[room]))
	for id := range d.rooms[room] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Directory) RoomsOf(connID string) []RoomID {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]RoomID, 0, len(d.joined[connID]))
	for room := range d.joined[connID] {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Size is the number of live connections in at least one room.
func (d *Directory) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.joined)
}
