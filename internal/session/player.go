package session

import (
	"sync"

	"github.com/vidquery/vidquery/internal/overlay"
)

// Player relays seek requests to the browsers attached to a session. The
// browser's media element performs the actual seek.
type Player struct {
	mu        sync.Mutex
	listeners map[uint64]func(overlay.Seek)
	next      uint64
	last      *overlay.Seek
}

func newPlayer() *Player {
	return &Player{listeners: make(map[uint64]func(overlay.Seek))}
}

func (p *Player) Seek(s overlay.Seek) {
	p.mu.Lock()
	p.last = &s
	fns := make([]func(overlay.Seek), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// OnSeek registers fn for future seeks and returns its removal function.
func (p *Player) OnSeek(fn func(overlay.Seek)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// LastSeek is the most recent seek, for browsers that attach late.
func (p *Player) LastSeek() (overlay.Seek, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return overlay.Seek{}, false
	}
	return *p.last, true
}
