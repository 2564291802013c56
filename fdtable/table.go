package fdtable

import (
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/wippyai/wasi-vfs/abi"
	"github.com/wippyai/wasi-vfs/arena"
)

// FirstFd is the first number handed out; 0-2 are the standard streams.
const FirstFd uint32 = 3

// Descriptor is one open, guest-visible handle.
type Descriptor struct {
	Rights           abi.Rights
	RightsInheriting abi.Rights
	Flags            abi.Fdflags
	Offset           uint64
	Inode            arena.Index
}

// EventType identifies a descriptor lifecycle event.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventRemoved
)

func (e EventType) String() string {
	switch e {
	case EventAllocated:
		return "allocated"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event describes a descriptor lifecycle change.
type Event struct {
	Descriptor Descriptor
	Fd         uint32
	Type       EventType
}

// Observer receives descriptor lifecycle events.
type Observer interface {
	OnDescriptorEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnDescriptorEvent(e Event) { f(e) }

// Table is the descriptor table of one filesystem instance.
type Table struct {
	fds       map[uint32]*Descriptor
	observers []Observer
	next      uint32
	mu        sync.RWMutex
	obsMu     sync.RWMutex
}

// New creates an empty table whose first allocation is FirstFd.
func New() *Table {
	return &Table{
		fds:  make(map[uint32]*Descriptor),
		next: FirstFd,
	}
}

// Allocate stores a new descriptor and returns its number. Several
// descriptors may reference the same inode. The only failure is exhaustion of
// the number space, reported as ErrnoNfile.
func (t *Table) Allocate(rights, inheriting abi.Rights, flags abi.Fdflags, inode arena.Index) (uint32, error) {
	t.mu.Lock()
	if t.next == math.MaxUint32 {
		t.mu.Unlock()
		return 0, abi.ErrnoNfile
	}
	fd := t.next
	t.next++
	d := &Descriptor{
		Rights:           rights,
		RightsInheriting: inheriting,
		Flags:            flags,
		Inode:            inode,
	}
	t.fds[fd] = d
	snapshot := *d
	t.mu.Unlock()

	t.notify(Event{Type: EventAllocated, Fd: fd, Descriptor: snapshot})
	return fd, nil
}

// Get returns the descriptor for fd. The returned pointer is live: callers
// that mutate it (cursor offset, flags) must serialise access themselves.
func (t *Table) Get(fd uint32) (*Descriptor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.fds[fd]
	if !ok {
		return nil, abi.ErrnoBadf
	}
	return d, nil
}

// Remove deletes fd from the table. Its number is not reused.
func (t *Table) Remove(fd uint32) (Descriptor, error) {
	t.mu.Lock()
	d, ok := t.fds[fd]
	if !ok {
		t.mu.Unlock()
		return Descriptor{}, abi.ErrnoBadf
	}
	delete(t.fds, fd)
	snapshot := *d
	t.mu.Unlock()

	t.notify(Event{Type: EventRemoved, Fd: fd, Descriptor: snapshot})
	return snapshot, nil
}

// Len returns the number of open descriptors.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.fds)
}

// Next returns the number the next Allocate will use.
func (t *Table) Next() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.next
}

// Each calls fn for every open descriptor in ascending fd order until fn
// returns false. fn receives a copy.
func (t *Table) Each(fn func(fd uint32, d Descriptor) bool) {
	t.mu.RLock()
	fds := slices.Sorted(maps.Keys(t.fds))
	snapshot := make([]Descriptor, len(fds))
	for i, fd := range fds {
		snapshot[i] = *t.fds[fd]
	}
	t.mu.RUnlock()

	for i, fd := range fds {
		if !fn(fd, snapshot[i]) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnDescriptorEvent(e)
	}
}
