package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func bm(id, owner string, sec int) Bookmark {
	return Bookmark{ID: id, OwnerID: owner, Title: "title " + id, URL: "https://" + id + ".example.com", CreatedAt: at(sec)}
}

func ids(items []Bookmark) []string {
	out := make([]string, len(items))
	for i, b := range items {
		out[i] = b.ID
	}
	return out
}

// fakeBackend is an in-memory Backend. Hooks run inside the matching call,
// which lets tests deliver events at precise points of a request.
type fakeBackend struct {
	mu      sync.Mutex
	rows    []Bookmark
	subs    []*fakeSub
	nextSec int

	queryErr  error
	insertErr error
	deleteErr error
	subErr    error

	queryCalls  int
	insertCalls int
	deleteCalls int
	subCalls    int

	// liveAtSubscribe records, per Subscribe call, how many subscriptions
	// were still live.
	liveAtSubscribe []int

	onQuery  func()
	onInsert func(b Bookmark)
	onDelete func(id string)
}

func newFakeBackend(rows ...Bookmark) *fakeBackend {
	return &fakeBackend{rows: rows, nextSec: 100}
}

func (f *fakeBackend) Query(_ context.Context, ownerID string) ([]Bookmark, error) {
	f.mu.Lock()
	f.queryCalls++
	err := f.queryErr
	var out []Bookmark
	for _, b := range f.rows {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	hook := f.onQuery
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeBackend) Insert(_ context.Context, nb NewBookmark) (*Bookmark, error) {
	f.mu.Lock()
	f.insertCalls++
	if f.insertErr != nil {
		err := f.insertErr
		f.mu.Unlock()
		return nil, err
	}
	f.nextSec++
	b := Bookmark{
		ID:        fmt.Sprintf("b%d", f.nextSec),
		OwnerID:   nb.OwnerID,
		Title:     nb.Title,
		URL:       nb.URL,
		CreatedAt: at(f.nextSec),
	}
	f.rows = append(f.rows, b)
	hook := f.onInsert
	f.mu.Unlock()
	if hook != nil {
		hook(b)
	}
	return &b, nil
}

func (f *fakeBackend) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	f.deleteCalls++
	err := f.deleteErr
	if err == nil {
		for i, b := range f.rows {
			if b.ID == id {
				f.rows = append(f.rows[:i], f.rows[i+1:]...)
				break
			}
		}
	}
	hook := f.onDelete
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return err
}

func (f *fakeBackend) Subscribe(_ context.Context, req SubscribeRequest, onEvent func(ChangeEvent)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCalls++
	live := 0
	for _, s := range f.subs {
		if !s.ended() {
			live++
		}
	}
	f.liveAtSubscribe = append(f.liveAtSubscribe, live)
	if f.subErr != nil {
		return nil, f.subErr
	}
	sub := &fakeSub{req: req, onEvent: onEvent, done: make(chan struct{})}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeBackend) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

func (f *fakeBackend) lastSub() *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[len(f.subs)-1]
}

func (f *fakeBackend) subCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subCalls
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeSub struct {
	req     SubscribeRequest
	onEvent func(ChangeEvent)

	mu       sync.Mutex
	done     chan struct{}
	closed   bool
	released bool
	err      error
}

// emit delivers ev unless the subscription has ended.
func (s *fakeSub) emit(ev ChangeEvent) {
	if s.ended() {
		return
	}
	s.onEvent(ev)
}

func (s *fakeSub) create(b Bookmark) { s.emit(ChangeEvent{Type: EventCreate, Record: b}) }
func (s *fakeSub) remove(id string)  { s.emit(ChangeEvent{Type: EventDelete, Record: Bookmark{ID: id}}) }

func (s *fakeSub) ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSub) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *fakeSub) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// drop ends the stream as if the connection was lost.
func (s *fakeSub) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.err = errors.New("connection reset")
		close(s.done)
	}
}

func (s *fakeSub) Done() <-chan struct{} { return s.done }

func (s *fakeSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
