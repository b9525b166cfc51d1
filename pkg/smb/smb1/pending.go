package smb1

import (
	"fmt"
	"sync"
)

// reservedMID is used by servers for unsolicited messages such as oplock breaks.
const reservedMID = 0xFFFF

type result struct {
	msg *Message
	err error
}

// pendingTable maps a mid to the single-use slot its caller waits on.
type pendingTable struct {
	mu      sync.Mutex
	last    uint16
	waiters map[uint16]chan result
	err     error
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiters: make(map[uint16]chan result)}
}

// register allocates a fresh mid, skipping the reserved value and any mid
// still awaiting a response.
func (p *pendingTable) register() (uint16, <-chan result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return 0, nil, p.err
	}

	for i := 0; i < 0x10000; i++ {
		p.last++
		mid := p.last
		if mid == reservedMID {
			continue
		}
		if _, busy := p.waiters[mid]; busy {
			continue
		}
		ch := make(chan result, 1)
		p.waiters[mid] = ch
		return mid, ch, nil
	}
	return 0, nil, fmt.Errorf("%w: no free multiplex ids", ErrOutOfSequence)
}

// cancel forgets a mid; a response arriving later is dropped.
func (p *pendingTable) cancel(mid uint16) {
	p.mu.Lock()
	delete(p.waiters, mid)
	p.mu.Unlock()
}

// deliver hands r to the waiter for mid. It reports false if nobody waits.
func (p *pendingTable) deliver(mid uint16, r result) bool {
	p.mu.Lock()
	ch, ok := p.waiters[mid]
	delete(p.waiters, mid)
	p.mu.Unlock()

	if ok {
		ch <- r
	}
	return ok
}

// failAll completes every waiter with err and refuses new registrations.
// Only the first error sticks.
func (p *pendingTable) failAll(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err == nil {
		p.err = err
	}
	for mid, ch := range p.waiters {
		ch <- result{err: p.err}
		delete(p.waiters, mid)
	}
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
