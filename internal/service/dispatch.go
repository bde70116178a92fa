package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/mindchat/internal/domain"
	"github.com/set-night/mindchat/internal/provider"
)

const (
	stoppedContent     = "Stopped by user"
	interruptedContent = "Request interrupted before a reply arrived"
	timedOutContent    = "Request interrupted: no reply within the time limit"
)

// request is the in-flight record for one session. Its pointer identity is
// what a finishing call compares against to learn whether it is still current.
type request struct {
	id     uuid.UUID
	cancel context.CancelCauseFunc
}

// startLocked dispatches the trailing user message of session id, superseding
// any running call. It returns the events to emit once mu is released.
// Caller holds mu.
func (c *Coordinator) startLocked(id int64) []Event {
	s := c.store.Find(id)
	if c.closed || s == nil || len(s.Messages) == 0 {
		return nil
	}
	last := s.Messages[len(s.Messages)-1]
	if last.Role != domain.RoleUser {
		return nil
	}

	prev := c.inflight[id]
	if prev != nil {
		prev.cancel(ErrSuperseded)
	}

	ctx, cancel := context.WithCancelCause(c.base)
	req := &request{id: newRequestID(), cancel: cancel}
	c.inflight[id] = req

	model, modelErr := c.resolveModelLocked()
	call := provider.Request{
		History:      slices.Clone(s.Messages[:len(s.Messages)-1]),
		NewUserText:  last.Content,
		SystemPrompt: s.SystemPrompt,
		Model:        model,
		Search:       c.settings.Search,
		Reasoning:    c.settings.Reasoning,
		Effort:       c.catalog.Effort(model.Provider, c.settings.Reasoning),
	}

	c.wg.Add(1)
	go c.run(ctx, id, req, call, modelErr)

	if prev != nil {
		return nil
	}
	return []Event{{Type: EventLoadingChanged, SessionID: id, Loading: true}}
}

func (c *Coordinator) resolveModelLocked() (domain.Model, error) {
	if c.settings.Model == "" {
		return domain.Model{}, domain.ErrNoModelSelected
	}
	m, ok := c.catalog.Find(c.settings.Model)
	if !ok {
		return domain.Model{}, fmt.Errorf("%w: %s", domain.ErrModelNotFound, c.settings.Model)
	}
	return m, nil
}

// run performs one dispatch. Deferred calls run in reverse: the wake lock is
// released before the in-flight record is cleared.
func (c *Coordinator) run(ctx context.Context, id int64, req *request, call provider.Request, modelErr error) {
	defer c.wg.Done()
	defer c.finish(id, req)

	log := c.log.With("session_id", id, "request_id", req.id.String(), "model", call.Model.ID)

	release, err := c.wake.Acquire(ctx, id)
	if err != nil {
		log.Debug("wake lock unavailable", "error", err)
	} else if release != nil {
		defer release()
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeoutCause(ctx, c.timeout, ErrRequestTimeout)
		defer cancel()
	}

	start := c.now()
	resp, err := c.call(callCtx, call, modelErr)
	elapsed := c.now().Sub(start)

	msg, keep := reply(callCtx, call, resp, err, elapsed)
	if err != nil && keep {
		log.Warn("request failed", "stop_reason", msg.StopReason, "error", err)
	}

	c.mu.Lock()
	if c.inflight[id] != req {
		c.mu.Unlock()
		log.Debug("discarding superseded result")
		return
	}
	s := c.store.Find(id)
	if s == nil || !keep {
		c.mu.Unlock()
		return
	}
	s.Messages = append(s.Messages, msg)
	c.revs[id]++
	c.mu.Unlock()

	evCtx := context.WithoutCancel(ctx)
	c.emit(evCtx, Event{Type: EventMessageAppended, SessionID: id, Message: &msg})

	if err := c.persist(evCtx, id); err != nil {
		log.Error("failed to persist reply", "error", err)
	}
}

func (c *Coordinator) call(ctx context.Context, call provider.Request, modelErr error) (*provider.Response, error) {
	if modelErr != nil {
		return nil, modelErr
	}
	a, err := c.adapters.Lookup(call.Model.Provider)
	if err != nil {
		return nil, err
	}
	resp, err := a.CreateMessage(ctx, call)
	if err == nil && resp == nil {
		return nil, errors.New("provider returned no response")
	}
	return resp, err
}

// finish clears the in-flight record only if it still belongs to req.
func (c *Coordinator) finish(id int64, req *request) {
	req.cancel(nil)

	c.mu.Lock()
	cleared := c.inflight[id] == req
	if cleared {
		delete(c.inflight, id)
	}
	c.mu.Unlock()

	if cleared {
		c.emit(context.Background(), Event{Type: EventLoadingChanged, SessionID: id, Loading: false})
	}
}

// reply turns a call outcome into the assistant message to append. keep is
// false for superseded calls, which leave no trace.
func reply(ctx context.Context, call provider.Request, resp *provider.Response, err error, elapsed time.Duration) (msg domain.Message, keep bool) {
	msg = domain.Message{Role: domain.RoleAssistant, Model: call.Model.ID}

	if err == nil {
		msg.Content = resp.Content
		msg.Reasoning = resp.Reasoning
		msg.SearchUsed = call.Search
		msg.Tokens = resp.Tokens
		msg.StopReason = resp.StopReason
		msg.Cost = CalculateCost(call.Model, resp.Tokens, resp.Searches).InexactFloat64()
		msg.TimeMs = elapsed.Milliseconds()
		return msg, true
	}

	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, ErrSuperseded):
		return msg, false
	case errors.Is(cause, ErrStoppedByUser):
		msg.Content = stoppedContent
		msg.StopReason = domain.StopReasonStopped
	case errors.Is(cause, ErrRequestTimeout):
		msg.Content = timedOutContent
		msg.StopReason = domain.StopReasonInterrupted
	case ctx.Err() != nil:
		msg.Content = interruptedContent
		msg.StopReason = domain.StopReasonInterrupted
	default:
		msg.Content = "Error: " + err.Error()
		msg.StopReason = domain.StopReasonError
	}
	return msg, true
}

func newRequestID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
