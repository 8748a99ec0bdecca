// Package resource accounts for the memory held by sieve engines.
//
// A Budget is a byte limit shared by any number of engines. Each engine takes
// a Reservation for its bitset before allocating it and gives it back on
// Close:
//
//	budget := resource.NewBudget(4 << 30) // 4GB across all engines
//
//	a, _ := gc60.New(1e10, gc60.WithMemoryBudget(budget))
//	_, err := gc60.New(1e11, gc60.WithMemoryBudget(budget))
//	// err wraps gc60.ErrOutOfMemory: the second bitset does not fit
//
// HostBudget sizes a Budget from the memory the host can hand out right now.
// A nil *Budget reserves without checking.
package resource
