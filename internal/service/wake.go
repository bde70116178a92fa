package service

import "context"

// WakeLock keeps the host signalling activity while a dispatch runs.
// Acquisition is best effort: the coordinator ignores errors.
type WakeLock interface {
	Acquire(ctx context.Context, sessionID int64) (release func(), err error)
}

type noWake struct{}

func (noWake) Acquire(context.Context, int64) (func(), error) {
	return func() {}, nil
}
