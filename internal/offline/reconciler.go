package offline

import (
	"context"

	"go.uber.org/zap"
)

// Submitter sends one queued item through the live submission path. An
// error means the server did not acknowledge the item.
type Submitter interface {
	Submit(ctx context.Context, item Item) error
}

// Reconciler replays queued items when connectivity returns.
type Reconciler struct {
	queue  *Queue
	submit Submitter
	online func() bool
	logger *zap.SugaredLogger
}

// NewReconciler wires a queue to a submitter. online reports current
// connectivity; when nil, the reconciler assumes online.
func NewReconciler(q *Queue, s Submitter, online func() bool, logger *zap.SugaredLogger) *Reconciler {
	if online == nil {
		online = func() bool { return true }
	}
	return &Reconciler{queue: q, submit: s, online: online, logger: logger}
}

// SubmitOrEnqueue is the single submission entry point for clients: when
// connected it submits live, otherwise it durably queues the item for a
// later replay. Returns true when the item was queued rather than sent.
func (r *Reconciler) SubmitOrEnqueue(ctx context.Context, item Item) (queued bool, err error) {
	if !r.online() {
		if err := r.queue.Enqueue(ctx, item); err != nil {
			return false, err
		}
		r.logger.Infow("Submission queued offline", "type", item.Type)
		return true, nil
	}
	return false, r.submit.Submit(ctx, item)
}

// Replay resubmits every queued item, oldest first. One item's failure
// never aborts the rest; an item is deleted only after the server
// acknowledged it, so failed items stay queued for the next pass.
func (r *Reconciler) Replay(ctx context.Context) (synced, failed int, err error) {
	items, err := r.queue.Pending(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(items) == 0 {
		return 0, 0, nil
	}

	r.logger.Infow("Replaying offline submissions", "pending", len(items))

	for _, item := range items {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if serr := r.submit.Submit(ctx, item); serr != nil {
			failed++
			r.logger.Warnw("Offline item replay failed, keeping queued", "id", item.ID, "error", serr)
			continue
		}
		if derr := r.queue.Delete(ctx, item.ID); derr != nil {
			// The server has the record but the local copy survived;
			// the next replay will submit it again (accepted duplicate
			// risk).
			failed++
			r.logger.Errorw("Replayed item could not be deleted", "id", item.ID, "error", derr)
			continue
		}
		synced++
	}

	r.logger.Infow("Offline replay finished", "synced", synced, "failed", failed)
	return synced, failed, nil
}

// Run replays once at start and again on every connectivity-restored
// signal, until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, onlineSignal <-chan struct{}) {
	if r.online() {
		if _, _, err := r.Replay(ctx); err != nil {
			r.logger.Warnw("Initial offline replay failed", "error", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-onlineSignal:
			if !ok {
				return
			}
			if _, _, err := r.Replay(ctx); err != nil {
				r.logger.Warnw("Offline replay failed", "error", err)
			}
		}
	}
}
