// Package viewstate decides whether a settled network response may still be
// applied to a view.
//
// A view hands out a Ticket before each request and checks it after the
// request settles. A ticket goes stale when the view is reset (a wholesale
// reload or a cleared cart), when the view is closed, or when a newer ticket
// was issued for the same key.
package viewstate

import (
	"context"
	"sync"
)

type Ticket struct {
	epoch uint64
	key   string
	seq   uint64
}

// Guard is not safe for concurrent use; callers hold their own view lock.
type Guard struct {
	epoch  uint64
	closed bool
	seq    map[string]uint64
}

// Begin issues a ticket that only goes stale on Reset or Close.
func (g *Guard) Begin() Ticket {
	return Ticket{epoch: g.epoch}
}

// BeginKey issues a ticket that also goes stale once a newer ticket for key exists.
func (g *Guard) BeginKey(key string) Ticket {
	if g.seq == nil {
		g.seq = make(map[string]uint64)
	}
	g.seq[key]++
	return Ticket{epoch: g.epoch, key: key, seq: g.seq[key]}
}

// Valid reports whether the response for t may be applied.
func (g *Guard) Valid(t Ticket) bool {
	if g.closed || t.epoch != g.epoch {
		return false
	}
	if t.key != "" && g.seq[t.key] != t.seq {
		return false
	}
	return true
}

// Reset invalidates every outstanding ticket.
func (g *Guard) Reset() {
	g.epoch++
	g.seq = nil
}

// Open marks the view mounted again after Close.
func (g *Guard) Open() {
	if g.closed {
		g.closed = false
		g.Reset()
	}
}

// Close invalidates every outstanding ticket until Open.
func (g *Guard) Close() {
	g.closed = true
	g.Reset()
}

func (g *Guard) Closed() bool { return g.closed }

// KeyedMutex serializes work per key.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// Lock blocks until key is free or ctx is done. The returned func releases it.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*keyLock)
	}
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() { m.release(key, l) }, nil
	case <-ctx.Done():
		m.mu.Lock()
		m.drop(key, l)
		m.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) release(key string, l *keyLock) {
	<-l.ch
	m.mu.Lock()
	m.drop(key, l)
	m.mu.Unlock()
}

func (m *KeyedMutex) drop(key string, l *keyLock) {
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}
