package runner

import "sync"

// ConstraintPool tracks a fixed resource budget. Acquire blocks until
// the requested amount fits; asks larger than the whole pool are
// clamped so a single oversized tool can still run alone.
type ConstraintPool struct {
	poolSize uint
	used     uint
	mu       sync.Mutex
	cond     *sync.Cond
}

type PoolAllocation struct {
	size uint
	pool *ConstraintPool
	done bool
}

func NewConstraintPool(max uint) *ConstraintPool {
	cp := &ConstraintPool{poolSize: max}
	cp.cond = sync.NewCond(&cp.mu)
	return cp
}

func (cp *ConstraintPool) Acquire(val uint) *PoolAllocation {
	if val > cp.poolSize {
		val = cp.poolSize
	}
	cp.mu.Lock()
	defer cp.mu.Unlock()
	for cp.used+val > cp.poolSize {
		cp.cond.Wait()
	}
	cp.used += val
	return &PoolAllocation{size: val, pool: cp}
}

// TryAcquire is the non-blocking variant.
func (cp *ConstraintPool) TryAcquire(val uint) (*PoolAllocation, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.used+val > cp.poolSize {
		return nil, PoolErrorNotAvailable
	}
	cp.used += val
	return &PoolAllocation{size: val, pool: cp}, nil
}

func (pa *PoolAllocation) Return() {
	pa.pool.mu.Lock()
	defer pa.pool.mu.Unlock()
	if pa.done {
		return
	}
	pa.done = true
	pa.pool.used -= pa.size
	pa.pool.cond.Broadcast()
}
