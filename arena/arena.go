package arena

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInvalidIndex = errors.New("arena: index was never issued")
	ErrStaleIndex   = errors.New("arena: stale index")
)

// Index references a value in an Arena.
type Index struct {
	Slot uint32
	Gen  uint32
}

// IsZero reports whether idx is the zero Index.
func (idx Index) IsZero() bool {
	return idx.Gen == 0
}

func (idx Index) String() string {
	return fmt.Sprintf("%d#%d", idx.Slot, idx.Gen)
}

// Arena stores values addressed by generational indices.
type Arena[T any] struct {
	slots    []slot[T]
	freeList []uint32
	live     int
	mu       sync.RWMutex
}

type slot[T any] struct {
	value T
	gen   uint32
	valid bool
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{
		slots:    make([]slot[T], 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Insert stores a value and returns its index. Freed slots are reused under a
// new generation.
func (a *Arena[T]) Insert(value T) Index {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.live++

	if len(a.freeList) > 0 {
		i := a.freeList[len(a.freeList)-1]
		a.freeList = a.freeList[:len(a.freeList)-1]
		s := &a.slots[i]
		s.value = value
		s.valid = true
		return Index{Slot: i, Gen: s.gen}
	}

	a.slots = append(a.slots, slot[T]{value: value, gen: 1, valid: true})
	return Index{Slot: uint32(len(a.slots) - 1), Gen: 1}
}

// Get returns the value at idx.
func (a *Arena[T]) Get(idx Index) (T, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, err := a.lookup(idx)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Contains reports whether idx refers to a live value.
func (a *Arena[T]) Contains(idx Index) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, err := a.lookup(idx)
	return err == nil
}

// Set replaces the value stored at idx without changing its generation.
func (a *Arena[T]) Set(idx Index, value T) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.lookup(idx)
	if err != nil {
		return err
	}
	s.value = value
	return nil
}

// Remove deletes the value at idx and returns it. The slot's generation is
// advanced so idx and every copy of it become stale.
func (a *Arena[T]) Remove(idx Index) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	s, err := a.lookup(idx)
	if err != nil {
		return zero, err
	}

	value := s.value
	s.value = zero
	s.valid = false
	s.gen++
	if s.gen == 0 {
		// Wrapped: retire the slot rather than hand out generation 0.
		a.live--
		return value, nil
	}
	a.freeList = append(a.freeList, idx.Slot)
	a.live--
	return value, nil
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

// Each calls fn for every live value in unspecified order until fn returns
// false. fn must not call back into the arena.
func (a *Arena[T]) Each(fn func(Index, T) bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for i := range a.slots {
		s := &a.slots[i]
		if !s.valid {
			continue
		}
		if !fn(Index{Slot: uint32(i), Gen: s.gen}, s.value) {
			return
		}
	}
}

func (a *Arena[T]) lookup(idx Index) (*slot[T], error) {
	if idx.Gen == 0 || int(idx.Slot) >= len(a.slots) {
		return nil, ErrInvalidIndex
	}
	s := &a.slots[idx.Slot]
	if !s.valid || s.gen != idx.Gen {
		return nil, ErrStaleIndex
	}
	return s, nil
}
