package bookmarks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/joestump/joe-marks/internal/logger"
)

type fakeProvider struct {
	mu        sync.Mutex
	current   *Identity
	listeners map[int]func(*Identity)
	next      int
}

func (p *fakeProvider) CurrentIdentity() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakeProvider) OnIdentityChange(fn func(*Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listeners == nil {
		p.listeners = make(map[int]func(*Identity))
	}
	id := p.next
	p.next++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *fakeProvider) set(ident *Identity) {
	p.mu.Lock()
	p.current = ident
	fns := make([]func(*Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ident)
	}
}

func TestBind_FollowsIdentity(t *testing.T) {
	f := newFakeBackend(bm("a", "alice", 1), bm("x", "bob", 1))
	s := NewSyncStore(f, logger.NewNop(), Options{})
	p := &fakeProvider{}

	stop := Bind(context.Background(), p, s, nil)
	assert.Assert(t, is.Nil(s.Identity()))
	assert.Equal(t, f.subCount(), 0)

	p.set(alice)
	assert.Equal(t, s.Identity().ID, "alice")
	assert.DeepEqual(t, ids(s.Items()), []string{"a"})

	// Same identity again does not churn the subscription.
	p.set(&Identity{ID: "alice"})
	assert.Equal(t, f.subCount(), 1)

	p.set(&Identity{ID: "bob"})
	assert.Assert(t, f.sub(0).isReleased())
	assert.DeepEqual(t, ids(s.Items()), []string{"x"})

	p.set(nil)
	assert.Assert(t, is.Nil(s.Identity()))
	assert.Assert(t, f.sub(1).isReleased())

	p.set(alice)
	stop()
	assert.Assert(t, f.lastSub().isReleased())
	assert.Assert(t, is.Nil(s.Identity()))

	// No longer listening.
	p.set(&Identity{ID: "bob"})
	assert.Assert(t, is.Nil(s.Identity()))
}

func TestBind_InitializesCurrentIdentity(t *testing.T) {
	f := newFakeBackend(bm("a", "alice", 1))
	s := NewSyncStore(f, logger.NewNop(), Options{})
	p := &fakeProvider{current: alice}

	stop := Bind(context.Background(), p, s, nil)
	defer stop()
	assert.DeepEqual(t, ids(s.Items()), []string{"a"})
}

func TestBind_SameIdentityRetriesFailedLoad(t *testing.T) {
	f := newFakeBackend(bm("a", "alice", 1))
	f.queryErr = errors.New("timeout")
	s := NewSyncStore(f, logger.NewNop(), Options{})
	p := &fakeProvider{current: alice}

	stop := Bind(context.Background(), p, s, nil)
	defer stop()
	var rerr *RequestError
	assert.Assert(t, errors.As(s.Err(), &rerr))
	assert.Equal(t, len(s.Items()), 0)

	f.set(func(f *fakeBackend) { f.queryErr = nil })
	p.set(&Identity{ID: "alice"})
	assert.NilError(t, s.Err())
	assert.DeepEqual(t, ids(s.Items()), []string{"a"})
	assert.Equal(t, f.subCount(), 2)
	assert.Assert(t, f.sub(0).isReleased())

	// Healthy again, so a repeat sign-in is a no-op.
	p.set(&Identity{ID: "alice"})
	assert.Equal(t, f.subCount(), 2)
}
