package resource

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/semaphore"
)

// ErrBudgetExceeded is returned when a reservation does not fit the budget.
var ErrBudgetExceeded = errors.New("memory budget exceeded")

// Budget is a byte limit that reservations are drawn from. It is safe for
// concurrent use.
type Budget struct {
	limit int64
	sem   *semaphore.Weighted // nil: track only
	inUse atomic.Int64
}

// NewBudget returns a budget of limit bytes. A limit <= 0 only tracks usage.
func NewBudget(limit int64) *Budget {
	b := &Budget{limit: max(limit, 0)}
	if limit > 0 {
		b.sem = semaphore.NewWeighted(limit)
	}
	return b
}

// HostBudget returns a budget of the memory currently available on the host.
func HostBudget() (*Budget, error) {
	avail, err := Available()
	if err != nil {
		return nil, err
	}
	if avail == 0 {
		return nil, fmt.Errorf("host reports no available memory")
	}
	return NewBudget(int64(min(avail, math.MaxInt64))), nil
}

// Available returns the memory available for new allocations in bytes.
func Available() (uint64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("failed to get memory stats: %w", err)
	}
	return v.Available, nil
}

// Reserve takes n bytes from the budget without blocking.
// On a nil budget the reservation is granted unchecked.
func (b *Budget) Reserve(n int64) (*Reservation, error) {
	n = max(n, 0)
	if b == nil || n == 0 {
		return &Reservation{size: n}, nil
	}
	if b.sem != nil && !b.sem.TryAcquire(n) {
		return nil, fmt.Errorf("%w: need %d bytes, %d of %d reserved",
			ErrBudgetExceeded, n, b.inUse.Load(), b.limit)
	}
	b.inUse.Add(n)
	return &Reservation{budget: b, size: n}, nil
}

// InUse returns the bytes currently reserved.
func (b *Budget) InUse() int64 {
	if b == nil {
		return 0
	}
	return b.inUse.Load()
}

// Limit returns the budget size in bytes, 0 when unlimited.
func (b *Budget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.limit
}

// Reservation is a block of bytes held against a Budget.
type Reservation struct {
	budget   *Budget
	size     int64
	released atomic.Bool
}

// Size returns the reserved bytes.
func (r *Reservation) Size() int64 {
	if r == nil {
		return 0
	}
	return r.size
}

// Release returns the bytes to the budget. Only the first call has an effect.
func (r *Reservation) Release() {
	if r == nil || r.budget == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	if r.budget.sem != nil {
		r.budget.sem.Release(r.size)
	}
	r.budget.inUse.Add(-r.size)
}
