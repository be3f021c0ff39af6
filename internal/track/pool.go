package track

import "github.com/MeKo-Tech/goklt/internal/klt"

// Pool is a fixed arena of feature slots with a free list. Slot addresses
// never change, so handed out features stay valid until released.
type Pool struct {
	slots []klt.PyramidFeature
	index map[*klt.PyramidFeature]int
	inUse []bool
	free  []int
}

// NewPool allocates capacity empty slots.
func NewPool(capacity int) *Pool {
	p := &Pool{
		slots: make([]klt.PyramidFeature, capacity),
		index: make(map[*klt.PyramidFeature]int, capacity),
		inUse: make([]bool, capacity),
		free:  make([]int, 0, capacity),
	}
	for i := range p.slots {
		p.index[&p.slots[i]] = i
	}
	p.Reset()
	return p
}

// Acquire pops a free slot. The returned feature has been Reset.
func (p *Pool) Acquire() (*klt.PyramidFeature, bool) {
	n := len(p.free)
	if n == 0 {
		return nil, false
	}
	i := p.free[n-1]
	p.free = p.free[:n-1]
	p.inUse[i] = true
	f := &p.slots[i]
	f.Reset()
	return f, true
}

// Release returns f to the free list. It reports false when f does not
// belong to the pool or is already free.
func (p *Pool) Release(f *klt.PyramidFeature) bool {
	i, ok := p.index[f]
	if !ok || !p.inUse[i] {
		return false
	}
	p.inUse[i] = false
	p.free = append(p.free, i)
	return true
}

// Reset marks every slot free.
func (p *Pool) Reset() {
	p.free = p.free[:0]
	for i := len(p.slots) - 1; i >= 0; i-- {
		p.inUse[i] = false
		p.free = append(p.free, i)
	}
}

// Available returns the number of free slots.
func (p *Pool) Available() int { return len(p.free) }

// Capacity returns the total number of slots.
func (p *Pool) Capacity() int { return len(p.slots) }

// InUse returns the number of acquired slots.
func (p *Pool) InUse() int { return len(p.slots) - len(p.free) }
