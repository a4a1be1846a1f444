package connection

import "sync"

type pairKey struct{ student, mentor uint }

type pairEntry struct {
	mu   sync.Mutex
	refs int
}

// pairLocks hands out one mutex per (student, mentor) pair and forgets it when unused.
type pairLocks struct {
	mu    sync.Mutex
	locks map[pairKey]*pairEntry
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[pairKey]*pairEntry)}
}

// Lock blocks until the pair is free and returns the matching unlock func.
func (p *pairLocks) Lock(studentID, mentorID uint) func() {
	key := pairKey{studentID, mentorID}

	p.mu.Lock()
	e, ok := p.locks[key]
	if !ok {
		e = &pairEntry{}
		p.locks[key] = e
	}
	e.refs++
	p.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		p.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

func (p *pairLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
