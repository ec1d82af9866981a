// Package runner ties the engine together: assemble a draft, record it as
// pending, execute it through the proxy client, and complete the history
// record exactly once. Every send runs in its own goroutine with its own
// cancellation scope; there is no global one-request-at-a-time lock.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"the-dev-tools/apiconsole/pkg/assemble"
	"the-dev-tools/apiconsole/pkg/errmap"
	"the-dev-tools/apiconsole/pkg/history"
	"the-dev-tools/apiconsole/pkg/idwrap"
	"the-dev-tools/apiconsole/pkg/model/mauth"
	"the-dev-tools/apiconsole/pkg/model/mcall"
	"the-dev-tools/apiconsole/pkg/proxyclient"
	"the-dev-tools/apiconsole/pkg/varsub"
)

type Runner struct {
	client *proxyclient.Client
	store  *history.Store
	logger *slog.Logger
	opts   proxyclient.Options

	mu      sync.Mutex
	cancels map[idwrap.IDWrap]context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

func New(client *proxyclient.Client, store *history.Store, logger *slog.Logger, opts proxyclient.Options) *Runner {
	return &Runner{
		client:  client,
		store:   store,
		logger:  logger,
		opts:    opts,
		cancels: make(map[idwrap.IDWrap]context.CancelFunc),
	}
}

// Send assembles and dispatches one request. Assembly failures return
// immediately and leave no history record; once a draft exists it is
// guaranteed to reach a terminal record. The returned id is usable right
// away as an in-flight indicator.
func (r *Runner) Send(ctx context.Context, op mcall.Operation, srv mcall.Server, vars varsub.VarMap, authState mauth.Auth) (idwrap.IDWrap, error) {
	res, err := assemble.AssembleWithTracking(op, srv, vars, authState)
	if err != nil {
		return idwrap.IDWrap{}, err
	}
	draft := res.Draft

	id := r.store.Record(draft)
	sendCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		failErr := r.store.Fail(id, errmap.CodeCancelled, "runner is shut down")
		if failErr != nil {
			r.logger.Error("failed to fail record", "id", id.String(), "error", failErr)
		}
		return id, nil
	}
	r.cancels[id] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.forget(id)

		resp, err := r.client.ExecuteWithAuth(sendCtx, draft, authState, r.opts)
		if err != nil {
			code := errmap.CodeOf(err)
			if errors.Is(err, context.Canceled) {
				code = errmap.CodeCancelled
			}
			if failErr := r.store.Fail(id, code, errmap.Friendly(err)); failErr != nil {
				r.logger.Error("record already terminal", "id", id.String(), "error", failErr)
			}
			r.logger.Warn("request failed", "id", id.String(), "method", draft.Method, "url", draft.URL, "code", string(code))
			return
		}
		if err := r.store.Complete(id, resp); err != nil {
			r.logger.Error("record already terminal", "id", id.String(), "error", err)
			return
		}
		r.logger.Info("request completed", "id", id.String(), "method", draft.Method, "url", draft.URL, "status", resp.Status, "timing_ms", resp.TimingMs)
	}()

	return id, nil
}

// Cancel aborts one in-flight send. The record transitions to a cancelled
// terminal failure via the send goroutine. Returns false when the id is not
// in flight.
func (r *Runner) Cancel(id idwrap.IDWrap) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Close aborts every in-flight send and waits for their records to reach a
// terminal state. Subsequent Sends fail their records immediately.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Flush waits for all currently in-flight sends to finish. Test helper and
// teardown aid; new sends remain allowed.
func (r *Runner) Flush() {
	r.wg.Wait()
}

func (r *Runner) forget(id idwrap.IDWrap) {
	r.mu.Lock()
	if cancel, ok := r.cancels[id]; ok {
		cancel()
		delete(r.cancels, id)
	}
	r.mu.Unlock()
}
