package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"ticketchat/models"
)

type fetchCall struct {
	ticketID string
	page     int
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[fetchCall]models.Page
	calls []fetchCall
	err   error
	// gate, when set, blocks every fetch until it is closed or ctx ends
	gate chan struct{}
	// ignoreCtx makes a gated fetch wait for the gate only
	ignoreCtx bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[fetchCall]models.Page)}
}

func (f *fakeFetcher) set(ticketID string, page int, p models.Page) {
	f.mu.Lock()
	f.pages[fetchCall{ticketID, page}] = p
	f.mu.Unlock()
}

func (f *fakeFetcher) FetchPage(ctx context.Context, ticketID string, page int) (models.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{ticketID, page})
	gate, err, ignoreCtx := f.gate, f.err, f.ignoreCtx
	p, ok := f.pages[fetchCall{ticketID, page}]
	f.mu.Unlock()

	if gate != nil && ignoreCtx {
		<-gate
	} else if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Page{}, ctx.Err()
		}
	}
	if err != nil {
		return models.Page{}, err
	}
	if !ok {
		return models.Page{Messages: []models.Message{}}, nil
	}
	return p, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) callList() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fetchCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeScroller struct {
	mu    sync.Mutex
	count int
}

func (s *fakeScroller) ScrollToBottom() {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
}

func (s *fakeScroller) scrolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *fakeReporter) Report(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *fakeReporter) reported() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

type fakeFeed struct {
	mu       sync.Mutex
	handlers map[string]map[int]func([]byte)
	next     int
	failOn   string
	// gate, when set, holds every Subscribe until it is closed
	gate chan struct{}
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: make(map[string]map[int]func([]byte))}
}

type fakeSub struct {
	feed    *fakeFeed
	channel string
	id      int
}

func (s *fakeSub) Unsubscribe() error {
	s.feed.mu.Lock()
	delete(s.feed.handlers[s.channel], s.id)
	s.feed.mu.Unlock()
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context, channel string, handler func([]byte)) (Subscription, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if channel == f.failOn {
		return nil, fmt.Errorf("subscribe %s refused", channel)
	}
	if f.handlers[channel] == nil {
		f.handlers[channel] = make(map[int]func([]byte))
	}
	f.next++
	f.handlers[channel][f.next] = handler
	return &fakeSub{feed: f, channel: channel, id: f.next}, nil
}

func (f *fakeFeed) subscribers(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[channel])
}

// publish delivers v to the channel's handlers synchronously
func (f *fakeFeed) publish(channel string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	var hs []func([]byte)
	for _, h := range f.handlers[channel] {
		hs = append(hs, h)
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(raw)
	}
}
