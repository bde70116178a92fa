package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/set-night/mindchat/internal/config"
	"github.com/set-night/mindchat/internal/domain"
	"github.com/set-night/mindchat/internal/provider"
	"github.com/set-night/mindchat/internal/repository"
)

// Cancellation causes. Any other cause observed on a cancelled request is
// treated as an interruption.
var (
	ErrSuperseded     = errors.New("request superseded")
	ErrStoppedByUser  = errors.New("stopped by user")
	ErrRequestTimeout = errors.New("request timed out")
)

var ErrCoordinatorClosed = errors.New("coordinator closed")

// AdapterSource resolves the adapter for a provider key.
type AdapterSource interface {
	Lookup(provider string) (provider.Adapter, error)
}

// Settings are the per-owner request options applied to every dispatch.
type Settings struct {
	Model     string
	Search    bool
	Reasoning bool
}

type CoordinatorDeps struct {
	Gateway  repository.Gateway
	Adapters AdapterSource
	Catalog  *config.Catalog
	Wake     WakeLock
	Observer Observer
	Logger   *slog.Logger
	Defaults Settings
}

type CoordinatorOption func(*Coordinator)

// WithRequestTimeout bounds each provider call. Zero means no bound.
func WithRequestTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.timeout = d }
}

func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator owns the sessions of one owner and at most one in-flight
// provider call per session. All methods are safe for concurrent use.
//
// Lock order is writeMu before mu. No I/O happens while mu is held.
type Coordinator struct {
	gateway  repository.Gateway
	adapters AdapterSource
	catalog  *config.Catalog
	wake     WakeLock
	observer Observer
	log      *slog.Logger
	ownerID  int64
	timeout  time.Duration
	now      func() time.Time

	base       context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	store    *SessionStore
	inflight map[int64]*request
	// sending holds sessions whose user message is appended but not yet dispatched.
	sending  map[int64]bool
	revs     map[int64]uint64
	settings Settings
	closed   bool

	// writeMu serializes gateway writes; written holds the last stored revision.
	writeMu sync.Mutex
	written map[int64]uint64
}

func NewCoordinator(deps CoordinatorDeps, ownerID int64, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		gateway:  deps.Gateway,
		adapters: deps.Adapters,
		catalog:  deps.Catalog,
		wake:     deps.Wake,
		observer: deps.Observer,
		log:      deps.Logger,
		ownerID:  ownerID,
		now:      time.Now,
		store:    NewSessionStore(),
		inflight: make(map[int64]*request),
		sending:  make(map[int64]bool),
		revs:     make(map[int64]uint64),
		settings: deps.Defaults,
		written:  make(map[int64]uint64),
	}
	if c.wake == nil {
		c.wake = noWake{}
	}
	if c.observer == nil {
		c.observer = NoOpObserver{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("owner_id", ownerID)
	for _, opt := range opts {
		opt(c)
	}
	c.base, c.cancelBase = context.WithCancel(context.Background())
	return c
}

func (c *Coordinator) OwnerID() int64 {
	return c.ownerID
}

// Init loads the owner's sessions and focuses the most recent one when it is
// still empty; otherwise it starts a new chat.
func (c *Coordinator) Init(ctx context.Context) error {
	list, err := c.gateway.ListSessions(ctx, c.ownerID)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	c.mu.Lock()
	c.store.Replace(list)
	front := c.store.Front()
	reuse := front != nil && !front.Dirty()
	if reuse {
		c.store.SetCurrent(front.ID)
	}
	c.mu.Unlock()

	c.emit(ctx, Event{Type: EventSessionsChanged})
	if reuse {
		c.emit(ctx, Event{Type: EventFocusChanged, SessionID: front.ID})
		return nil
	}
	_, err = c.NewChat(ctx)
	return err
}

// NewChat focuses a new empty session. An already empty focused session is reused.
func (c *Coordinator) NewChat(ctx context.Context) (int64, error) {
	c.mu.Lock()
	cur := c.store.Current()
	if cur != nil && !cur.Dirty() {
		id := cur.ID
		c.mu.Unlock()
		return id, nil
	}
	curID := c.store.CurrentID()
	c.mu.Unlock()

	if curID != 0 {
		if err := c.persist(ctx, curID); err != nil {
			c.log.Error("failed to persist session", "session_id", curID, "error", err)
		}
	}

	now := c.now()
	return c.create(ctx, &domain.Session{
		OwnerID:      c.ownerID,
		CreatedAt:    now,
		SystemPrompt: c.catalog.SystemPrompt(now),
	})
}

// Select changes focus. It never touches in-flight requests.
func (c *Coordinator) Select(ctx context.Context, id int64) error {
	c.mu.Lock()
	s := c.store.Find(id)
	if s == nil {
		c.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	c.store.SetCurrent(id)
	if last := s.LastAssistant(); last != nil {
		if _, ok := c.catalog.Find(last.Model); ok {
			c.settings.Model = last.Model
		}
	}
	c.mu.Unlock()

	c.emit(ctx, Event{Type: EventFocusChanged, SessionID: id})
	return nil
}

// Send appends a user message, stores it and dispatches it. Empty text,
// blocked sessions and sessions with a request in flight are ignored. A
// storage failure is returned after the dispatch has started.
func (c *Coordinator) Send(ctx context.Context, id int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}
	s := c.store.Find(id)
	if s == nil {
		c.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	if s.Blocked() || c.inflight[id] != nil || c.sending[id] {
		c.mu.Unlock()
		return nil
	}
	msg := domain.NewUserMessage(text)
	s.Messages = append(s.Messages, msg)
	c.revs[id]++
	c.sending[id] = true
	c.mu.Unlock()

	c.emit(ctx, Event{Type: EventMessageAppended, SessionID: id, Message: &msg})

	perr := c.persist(ctx, id)
	if perr != nil {
		c.log.Error("failed to persist user message", "session_id", id, "error", perr)
	}

	c.mu.Lock()
	delete(c.sending, id)
	events := c.startLocked(id)
	c.mu.Unlock()
	c.emit(ctx, events...)

	return perr
}

// Regenerate drops everything after the user message at index and dispatches
// it again, superseding any running call for the session. An index that
// points at an assistant message is a no-op; one outside the log returns
// domain.ErrInvalidIndex without changing anything.
func (c *Coordinator) Regenerate(ctx context.Context, id int64, index int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}
	s := c.store.Find(id)
	if s == nil {
		c.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	if index < 0 || index >= len(s.Messages) {
		c.mu.Unlock()
		return domain.ErrInvalidIndex
	}
	if s.Messages[index].Role != domain.RoleUser {
		c.mu.Unlock()
		return nil
	}
	s.Messages = s.Messages[:index+1]
	c.revs[id]++
	events := append([]Event{{Type: EventSessionsChanged, SessionID: id}}, c.startLocked(id)...)
	c.mu.Unlock()

	c.emit(ctx, events...)

	if err := c.persist(ctx, id); err != nil {
		c.log.Error("failed to persist truncated session", "session_id", id, "error", err)
		return err
	}
	return nil
}

// Fork starts a new focused session with the messages before the user
// message at index and returns that message's text. ok is false when index
// does not point at a user message.
func (c *Coordinator) Fork(ctx context.Context, id int64, index int) (text string, ok bool, err error) {
	c.mu.Lock()
	s := c.store.Find(id)
	if s == nil {
		c.mu.Unlock()
		return "", false, domain.ErrSessionNotFound
	}
	if index < 0 || index >= len(s.Messages) {
		c.mu.Unlock()
		return "", false, domain.ErrInvalidIndex
	}
	if s.Messages[index].Role != domain.RoleUser {
		c.mu.Unlock()
		return "", false, nil
	}
	text = s.Messages[index].Content
	fork := &domain.Session{
		OwnerID:      c.ownerID,
		CreatedAt:    c.now(),
		SystemPrompt: s.SystemPrompt,
		Messages:     append([]domain.Message(nil), s.Messages[:index]...),
	}
	dirty := s.Dirty()
	c.mu.Unlock()

	if dirty {
		if err := c.persist(ctx, id); err != nil {
			c.log.Error("failed to persist session before fork", "session_id", id, "error", err)
		}
	}

	if _, err := c.create(ctx, fork); err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Stop cancels the running call for the session, if any.
func (c *Coordinator) Stop(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req := c.inflight[id]; req != nil {
		req.cancel(ErrStoppedByUser)
	}
}

// DeleteSession silently cancels any running call, removes the session and
// refocuses to the most recent remaining one, creating a new chat if none is left.
func (c *Coordinator) DeleteSession(ctx context.Context, id int64) error {
	c.mu.Lock()
	if c.store.Find(id) == nil {
		c.mu.Unlock()
		return domain.ErrSessionNotFound
	}

	var events []Event
	if req := c.inflight[id]; req != nil {
		req.cancel(ErrSuperseded)
		delete(c.inflight, id)
		events = append(events, Event{Type: EventLoadingChanged, SessionID: id, Loading: false})
	}
	wasCurrent := c.store.CurrentID() == id
	c.store.Remove(id)
	delete(c.revs, id)

	var next int64
	if wasCurrent {
		if front := c.store.Front(); front != nil {
			c.store.SetCurrent(front.ID)
			next = front.ID
		}
	}
	c.mu.Unlock()

	events = append(events, Event{Type: EventSessionsChanged, SessionID: id})
	if next != 0 {
		events = append(events, Event{Type: EventFocusChanged, SessionID: next})
	}
	c.emit(ctx, events...)

	c.writeMu.Lock()
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.PersistTimeout)
	err := c.gateway.DeleteSession(wctx, id)
	cancel()
	delete(c.written, id)
	c.writeMu.Unlock()

	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return fmt.Errorf("delete session %d: %w", id, err)
	}

	if wasCurrent && next == 0 {
		if _, err := c.NewChat(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close interrupts every running call and waits until their outcomes are stored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancelBase()
	c.wg.Wait()
}

// Sessions returns copies of all sessions, most recent first.
func (c *Coordinator) Sessions() []*domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := c.store.All()
	out := make([]*domain.Session, len(all))
	for i, s := range all {
		out[i] = s.Clone()
	}
	return out
}

// Current returns a copy of the focused session, or nil.
func (c *Coordinator) Current() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.store.Current(); s != nil {
		return s.Clone()
	}
	return nil
}

func (c *Coordinator) Session(id int64) (*domain.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.store.Find(id); s != nil {
		return s.Clone(), true
	}
	return nil, false
}

func (c *Coordinator) IsLoading(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[id]
	return ok
}

func (c *Coordinator) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Coordinator) SetModel(modelID string) error {
	if _, ok := c.catalog.Find(modelID); !ok {
		return fmt.Errorf("%w: %s", domain.ErrModelNotFound, modelID)
	}
	c.mu.Lock()
	c.settings.Model = modelID
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) SetSearch(on bool) {
	c.mu.Lock()
	c.settings.Search = on
	c.mu.Unlock()
}

func (c *Coordinator) SetReasoning(on bool) {
	c.mu.Lock()
	c.settings.Reasoning = on
	c.mu.Unlock()
}

func (c *Coordinator) create(ctx context.Context, s *domain.Session) (int64, error) {
	id, err := c.gateway.CreateSession(ctx, s)
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	s.ID = id

	c.mu.Lock()
	c.store.Insert(s)
	c.store.SetCurrent(id)
	c.mu.Unlock()

	c.emit(ctx,
		Event{Type: EventSessionsChanged, SessionID: id},
		Event{Type: EventFocusChanged, SessionID: id},
	)
	return id, nil
}

// persist writes the latest state of a session. Snapshots older than the
// last stored revision are skipped, so concurrent callers never roll a
// session back. Writes outlive ctx cancellation.
func (c *Coordinator) persist(ctx context.Context, id int64) error {
	c.mu.Lock()
	s := c.store.Find(id)
	if s == nil {
		c.mu.Unlock()
		return nil
	}
	snap := s.Clone()
	rev := c.revs[id]
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if rev <= c.written[id] {
		return nil
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.PersistTimeout)
	defer cancel()
	if err := c.gateway.UpdateSession(wctx, id, snap); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) && !c.exists(id) {
			return nil
		}
		return fmt.Errorf("persist session %d: %w", id, err)
	}
	c.written[id] = rev
	return nil
}

func (c *Coordinator) exists(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Find(id) != nil
}

func (c *Coordinator) emit(ctx context.Context, events ...Event) {
	for _, e := range events {
		e.OwnerID = c.ownerID
		c.observer.OnEvent(ctx, e)
	}
}
