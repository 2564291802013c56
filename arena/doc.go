// Package arena provides a generational-index store.
//
// Values live in a slice of slots. Each slot carries a generation counter that
// advances whenever its value is removed, and every Index handed out records
// the generation it was issued under:
//
//	a := arena.New[*Node]()
//	idx := a.Insert(node)
//	n, err := a.Get(idx)    // ok
//	a.Remove(idx)
//	_, err = a.Get(idx)     // ErrStaleIndex, even after the slot is reused
//
// Cross references between stored values (a symlink pointing at its target,
// a directory pointing at its entries) are expressed as Index values rather
// than pointers, so a reference to a recycled slot is detected instead of
// silently aliasing the new occupant.
//
// The zero Index is never issued and is always invalid.
package arena
