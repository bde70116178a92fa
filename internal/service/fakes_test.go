package service_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/set-night/mindchat/internal/config"
	"github.com/set-night/mindchat/internal/domain"
	"github.com/set-night/mindchat/internal/provider"
	"github.com/set-night/mindchat/internal/service"
)

const testCatalogYAML = `
models:
  - id: Test
    provider: test
    key: test-model
    input: 1
    input_cached: 0.5
    output: 2
  - id: Other
    provider: test
    key: other-model
    input: 3
    output: 4
reasoning:
  test: {off: low, on: high}
system_prompt: be brief
`

// memGateway is an in-memory Gateway that records every write.
type memGateway struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*domain.Session
	writes []gatewayWrite

	updateErr error
}

type gatewayWrite struct {
	op   string
	id   int64
	snap *domain.Session
}

func newMemGateway() *memGateway {
	return &memGateway{rows: make(map[int64]*domain.Session)}
}

func (g *memGateway) CreateSession(ctx context.Context, s *domain.Session) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	snap := s.Clone()
	snap.ID = g.nextID
	g.rows[snap.ID] = snap
	g.writes = append(g.writes, gatewayWrite{op: "create", id: snap.ID, snap: snap.Clone()})
	return snap.ID, nil
}

func (g *memGateway) UpdateSession(ctx context.Context, id int64, s *domain.Session) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return g.updateErr
	}
	if _, ok := g.rows[id]; !ok {
		return domain.ErrSessionNotFound
	}
	g.rows[id] = s.Clone()
	g.writes = append(g.writes, gatewayWrite{op: "update", id: id, snap: s.Clone()})
	return nil
}

func (g *memGateway) DeleteSession(ctx context.Context, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rows[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(g.rows, id)
	g.writes = append(g.writes, gatewayWrite{op: "delete", id: id})
	return nil
}

func (g *memGateway) ListSessions(ctx context.Context, ownerID int64) ([]*domain.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*domain.Session
	for _, s := range g.rows {
		if s.OwnerID == ownerID {
			out = append(out, s.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domain.Session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return out, nil
}

func (g *memGateway) seed(s *domain.Session) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	snap := s.Clone()
	snap.ID = g.nextID
	g.rows[snap.ID] = snap
	return snap.ID
}

func (g *memGateway) row(id int64) (*domain.Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.rows[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (g *memGateway) log() []gatewayWrite {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.writes)
}

func (g *memGateway) updates(id int64) []gatewayWrite {
	var out []gatewayWrite
	for _, w := range g.log() {
		if w.op == "update" && w.id == id {
			out = append(out, w)
		}
	}
	return out
}

type step func(ctx context.Context, req provider.Request) (*provider.Response, error)

// scriptedAdapter plays steps in call order, then fallback.
type scriptedAdapter struct {
	mu       sync.Mutex
	requests []provider.Request
	steps    []step
	fallback step
	called   chan int
}

func newScriptedAdapter(steps ...step) *scriptedAdapter {
	return &scriptedAdapter{steps: steps, called: make(chan int, 16)}
}

func (a *scriptedAdapter) CreateMessage(ctx context.Context, req provider.Request) (*provider.Response, error) {
	a.mu.Lock()
	n := len(a.requests)
	a.requests = append(a.requests, req)
	s := a.fallback
	if n < len(a.steps) {
		s = a.steps[n]
	}
	a.mu.Unlock()

	a.called <- n
	if s == nil {
		return answer("ok")(ctx, req)
	}
	return s(ctx, req)
}

func (a *scriptedAdapter) request(n int) provider.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[n]
}

func (a *scriptedAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func (a *scriptedAdapter) waitCall(t *testing.T) int {
	t.Helper()
	select {
	case n := <-a.called:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("adapter was not called")
		return -1
	}
}

func answer(content string) step {
	return func(ctx context.Context, req provider.Request) (*provider.Response, error) {
		return &provider.Response{
			Content:    content,
			Tokens:     domain.TokenCounts{Input: 100, Output: 10, InputCacheHit: 40},
			StopReason: "completed",
		}, nil
	}
}

// answerAfter ignores cancellation and answers once release is closed.
func answerAfter(release <-chan struct{}, content string) step {
	return func(ctx context.Context, req provider.Request) (*provider.Response, error) {
		<-release
		return answer(content)(ctx, req)
	}
}

func untilCancelled(ctx context.Context, req provider.Request) (*provider.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func failWith(err error) step {
	return func(ctx context.Context, req provider.Request) (*provider.Response, error) {
		return nil, err
	}
}

type fakeWake struct {
	mu       sync.Mutex
	acquired int
	released int
	err      error
}

func (w *fakeWake) Acquire(ctx context.Context, sessionID int64) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	w.acquired++
	return func() {
		w.mu.Lock()
		w.released++
		w.mu.Unlock()
	}, nil
}

func (w *fakeWake) counts() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.acquired, w.released
}

type recorder struct {
	mu     sync.Mutex
	events []service.Event
}

func (r *recorder) OnEvent(ctx context.Context, e service.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) assistantAppends(id int64) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, e := range r.events {
		if e.Type == service.EventMessageAppended && e.SessionID == id && e.Message.Role == domain.RoleAssistant {
			out = append(out, *e.Message)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type harness struct {
	c       *service.Coordinator
	gw      *memGateway
	adapter *scriptedAdapter
	wake    *fakeWake
	events  *recorder
}

type harnessConfig struct {
	gw       *memGateway
	defaults *service.Settings
	opts     []service.CoordinatorOption
	wakeErr  error
}

func newHarness(t *testing.T, adapter *scriptedAdapter, cfgs ...harnessConfig) *harness {
	t.Helper()

	var hc harnessConfig
	if len(cfgs) > 0 {
		hc = cfgs[0]
	}
	if hc.gw == nil {
		hc.gw = newMemGateway()
	}
	defaults := service.Settings{Model: "Test"}
	if hc.defaults != nil {
		defaults = *hc.defaults
	}

	catalog, err := config.ParseCatalog([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}
	registry := provider.NewRegistry()
	registry.Register("test", adapter)

	h := &harness{
		gw:      hc.gw,
		adapter: adapter,
		wake:    &fakeWake{err: hc.wakeErr},
		events:  &recorder{},
	}
	h.c = service.NewCoordinator(service.CoordinatorDeps{
		Gateway:  h.gw,
		Adapters: registry,
		Catalog:  catalog,
		Wake:     h.wake,
		Observer: h.events,
		Defaults: defaults,
	}, 1, hc.opts...)
	t.Cleanup(h.c.Close)

	if err := h.c.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return h
}

func (h *harness) current(t *testing.T) int64 {
	t.Helper()
	cur := h.c.Current()
	if cur == nil {
		t.Fatal("no focused session")
	}
	return cur.ID
}

func (h *harness) messages(t *testing.T, id int64) []domain.Message {
	t.Helper()
	s, ok := h.c.Session(id)
	if !ok {
		t.Fatalf("session %d not found", id)
	}
	return s.Messages
}

// waitIdle waits until session id has no running call.
func (h *harness) waitIdle(t *testing.T, id int64) {
	t.Helper()
	waitFor(t, func() bool { return !h.c.IsLoading(id) })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

var errBackend = errors.New("backend exploded")
