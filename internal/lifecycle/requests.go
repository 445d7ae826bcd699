// Package lifecycle advances the two persistent state machines: user
// signal requests (pending -> executed|failed) and trades
// (open -> win|loss). Transitions are conditional updates against the
// store; a lost race is logged and absorbed, never retried or raised.
package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trading-core/internal/model"
)

// RequestStore is the persistence surface the request machine needs.
type RequestStore interface {
	PendingRequests(ctx context.Context, limit int) ([]model.SignalRequest, error)
	CompleteRequest(ctx context.Context, id int64, status model.RequestStatus) (bool, error)
}

// Requests drives signal requests to their terminal state.
type Requests struct {
	store  RequestStore
	logger *zap.Logger
}

func NewRequests(store RequestStore, logger *zap.Logger) *Requests {
	return &Requests{store: store, logger: logger}
}

// Pending fetches the next batch of unprocessed requests.
func (r *Requests) Pending(ctx context.Context, limit int) ([]model.SignalRequest, error) {
	return r.store.PendingRequests(ctx, limit)
}

// MarkExecuted transitions one request pending -> executed.
func (r *Requests) MarkExecuted(ctx context.Context, id int64) error {
	return r.complete(ctx, id, model.RequestExecuted)
}

// MarkFailed transitions one request pending -> failed.
func (r *Requests) MarkFailed(ctx context.Context, id int64) error {
	return r.complete(ctx, id, model.RequestFailed)
}

func (r *Requests) complete(ctx context.Context, id int64, status model.RequestStatus) error {
	ok, err := r.store.CompleteRequest(ctx, id, status)
	if err != nil {
		return fmt.Errorf("completing request %d as %s: %w", id, status, err)
	}
	if !ok {
		// Already terminal; another pipeline instance won the race.
		r.logger.Info("request already completed",
			zap.Int64("request_id", id), zap.String("wanted", string(status)))
	}
	return nil
}
