// Package fdtable maps guest descriptor numbers to open descriptors.
//
// Numbers 0, 1 and 2 belong to the standard streams and are never stored
// here. Allocation starts at 3 and is strictly monotonic for the life of a
// table: a number is never handed out twice, even after Remove, so a guest
// holding a closed number cannot reach somebody else's descriptor.
//
// Observers receive an Event for every allocation and removal:
//
//	t := fdtable.New()
//	t.Subscribe(fdtable.ObserverFunc(func(e fdtable.Event) {
//	    log.Printf("fd %d %s", e.Fd, e.Type)
//	}))
package fdtable
