package cryptolab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/jpalmerr/cryptolab/internal/poller"
)

// Update is one delivery to an [Observer]: the latest task snapshot, or the
// error that ended polling.
//
// When Err is a [*PollError], Task is the zero value. When Err is a
// [*JobFailure], Task is the FAILURE snapshot. Final marks the last update
// of a session.
type Update[R any] struct {
	Task  Task[R]
	Err   error
	Final bool
}

// Observer receives task snapshots as they are polled.
//
// Observers are invoked synchronously from the polling goroutine. They must
// not block, and must not call Stop on the delivering [Session] or
// [Tracker] synchronously; dispatch to another goroutine instead. Panics are
// recovered and logged.
type Observer[R any] func(Update[R])

// Session is one running poll loop for a submitted task.
type Session[R any] struct {
	inner *poller.Session[Task[R]]
}

// Stop cancels polling. Once Stop returns the observer receives nothing
// further, even if a response is already in flight. Idempotent.
func (s *Session[R]) Stop() {
	s.inner.Stop()
}

// Done returns a channel closed when the poll loop exits.
func (s *Session[R]) Done() <-chan struct{} {
	return s.inner.Done()
}

// Current returns the latest snapshot: the PENDING placeholder until the
// first poll response arrives.
func (s *Session[R]) Current() Task[R] {
	return s.inner.Last()
}

// Err returns why the session ended: nil after SUCCESS, a [*JobFailure], a
// [*PollError], [ErrStopped], or a context error.
func (s *Session[R]) Err() error {
	return s.inner.Err()
}

// Wait blocks until the session ends or ctx is done.
func (s *Session[R]) Wait(ctx context.Context) (Task[R], error) {
	return s.inner.Wait(ctx)
}

// ErrStopped is the session error after an explicit Stop.
var ErrStopped = poller.ErrStopped

// Submit creates a job of the given kind and returns its task id.
//
// Submit performs exactly one authenticated POST. A non-2xx answer returns a
// [*SubmissionError] whose message is the backend's detail; a 401 clears the
// stored token and returns [ErrUnauthorized].
//
// If req has a Validate() error method it is called first and nothing is sent
// when it fails.
func Submit[Req, R any](ctx context.Context, c *Client, kind JobKind[Req, R], req Req) (string, error) {
	if v, ok := any(req).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return "", fmt.Errorf("invalid %s request: %w", kind.name, err)
		}
	}

	resp, err := c.do(ctx, call{
		op:     kind.name + "_submit",
		method: http.MethodPost,
		path:   kind.submitPath,
		body:   req,
		auth:   true,
	})
	if err != nil {
		c.metrics.IncSubmission(kind.name, "error")
		if errors.Is(err, ErrUnauthorized) {
			return "", err
		}
		return "", fmt.Errorf("submit %s job: %w", kind.name, err)
	}

	if !resp.OK() {
		c.metrics.IncSubmission(kind.name, "rejected")
		return "", &SubmissionError{
			Op:         kind.name,
			StatusCode: resp.StatusCode,
			Message:    detailOr(resp.Body, kind.fallback),
		}
	}

	var accepted struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(resp.Body, &accepted); err != nil {
		c.metrics.IncSubmission(kind.name, "error")
		return "", fmt.Errorf("decode %s submission: %w", kind.name, err)
	}
	if accepted.TaskID == "" {
		c.metrics.IncSubmission(kind.name, "error")
		return "", fmt.Errorf("decode %s submission: missing task_id", kind.name)
	}

	c.metrics.IncSubmission(kind.name, "accepted")
	c.logger.Info("job submitted", "kind", kind.name, "task_id", accepted.TaskID)
	return accepted.TaskID, nil
}

// Watch starts polling taskID and returns the running [Session].
//
// The session starts from a PENDING placeholder, which is visible through
// [Session.Current] but not delivered to observer. The first status request
// is issued one poll interval later; each response then replaces the
// snapshot and is delivered. SUCCESS or FAILURE ends the loop with no further
// requests; a transport, status or decode failure ends it immediately with a
// [*PollError].
//
// Polling stops when ctx is cancelled or [Session.Stop] is called.
func Watch[Req, R any](ctx context.Context, c *Client, kind JobKind[Req, R], taskID string, observer Observer[R]) *Session[R] {
	inner := poller.Start(ctx, Placeholder[R](taskID), watchLoop(c, kind, taskID), adaptObserver(observer))
	c.trackSession(kind.name, inner.Done())
	return &Session[R]{inner: inner}
}

// trackSession keeps the active-session gauge for kind until done closes.
func (c *Client) trackSession(kind string, done <-chan struct{}) {
	if c.metrics == nil {
		return
	}
	finished := c.metrics.SessionStarted(kind)
	go func() {
		<-done
		finished()
	}()
}

// watchLoop builds the poll loop for one task.
func watchLoop[Req, R any](c *Client, kind JobKind[Req, R], taskID string) poller.Loop[Task[R]] {
	interval := kind.interval
	if interval <= 0 {
		interval = c.pollInterval
	}

	return poller.Loop[Task[R]]{
		Name:     kind.name,
		Interval: interval,
		Fetch: func(ctx context.Context) (Task[R], error) {
			task, err := fetchTask(ctx, c, kind, taskID)
			if err != nil && ctx.Err() == nil {
				c.metrics.IncFinished(kind.name, "poll_error")
			}
			return task, err
		},
		Outcome: func(t Task[R]) (bool, error) {
			switch t.Status {
			case StatusSuccess:
				c.metrics.IncFinished(kind.name, "success")
				return true, nil
			case StatusFailure:
				c.metrics.IncFinished(kind.name, "failure")
				return true, &JobFailure{Kind: kind.name, TaskID: taskID, Message: kind.failureMessage}
			}
			return false, nil
		},
		Logger: c.logger.With("task_id", taskID),
	}
}

// fetchTask performs one status request.
func fetchTask[Req, R any](ctx context.Context, c *Client, kind JobKind[Req, R], taskID string) (Task[R], error) {
	pollErr := func(code int, err error) error {
		return &PollError{Kind: kind.name, TaskID: taskID, StatusCode: code, Err: err}
	}

	resp, err := c.do(ctx, call{
		op:     kind.name + "_status",
		method: http.MethodGet,
		path:   kind.statusURLPath(url.PathEscape(taskID)),
		auth:   true,
	})
	if err != nil {
		return Task[R]{}, pollErr(resp.StatusCode, err)
	}
	if !resp.OK() {
		return Task[R]{}, pollErr(resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var task Task[R]
	if err := json.Unmarshal(resp.Body, &task); err != nil {
		return Task[R]{}, pollErr(resp.StatusCode, fmt.Errorf("decode task: %w", err))
	}
	if task.TaskID == "" {
		task.TaskID = taskID
	}
	if task.Status != StatusSuccess {
		// results only accompany a successful task
		task.Results = nil
	}

	c.metrics.IncPoll(kind.name, task.Status.String())
	return task, nil
}

func adaptObserver[R any](observer Observer[R]) poller.Observer[Task[R]] {
	if observer == nil {
		return nil
	}
	return func(u poller.Update[Task[R]]) {
		observer(Update[R]{Task: u.Snapshot, Err: u.Err, Final: u.Final})
	}
}

// Tracker owns one job slot: at most one polling session runs for it at a
// time.
//
// Submitting through a Tracker stops the previous session before the new job
// is created, so two loops never write to the same observer and a stale
// response from the old task cannot overwrite the new one.
//
//	t := cryptolab.NewTracker(c, cryptolab.ModelExplanationJob, func(u cryptolab.Update[cryptolab.ModelExplanation]) {
//	    ...
//	})
//	defer t.Stop()
//	if _, err := t.Submit(ctx, cryptolab.NewModelRequest("BTC", day)); err != nil { ... }
type Tracker[Req, R any] struct {
	client   *Client
	kind     JobKind[Req, R]
	observer Observer[R]

	// submitMu serializes Submit so slot order matches submission order.
	submitMu sync.Mutex
	slot     poller.Slot[Task[R]]
}

// NewTracker creates an idle [Tracker] for kind. observer may be nil.
func NewTracker[Req, R any](c *Client, kind JobKind[Req, R], observer Observer[R]) *Tracker[Req, R] {
	return &Tracker[Req, R]{client: c, kind: kind, observer: observer}
}

// Kind returns the tracked job kind.
func (t *Tracker[Req, R]) Kind() JobKind[Req, R] {
	return t.kind
}

// Submit stops any active session, submits req, and starts polling the new
// task from a PENDING placeholder.
//
// ctx bounds the submission request only. The returned session runs until it
// reaches a terminal state or the tracker is stopped or resubmitted.
func (t *Tracker[Req, R]) Submit(ctx context.Context, req Req) (*Session[R], error) {
	t.submitMu.Lock()
	defer t.submitMu.Unlock()

	t.slot.Stop()

	taskID, err := Submit(ctx, t.client, t.kind, req)
	if err != nil {
		return nil, err
	}

	inner := t.slot.Start(context.WithoutCancel(ctx), Placeholder[R](taskID), watchLoop(t.client, t.kind, taskID), adaptObserver(t.observer))
	t.client.trackSession(t.kind.name, inner.Done())

	return &Session[R]{inner: inner}, nil
}

// Stop stops the active session, if any. Idempotent.
func (t *Tracker[Req, R]) Stop() {
	t.slot.Stop()
}

// Session returns the most recent session, or nil before the first
// successful submission.
func (t *Tracker[Req, R]) Session() *Session[R] {
	inner := t.slot.Active()
	if inner == nil {
		return nil
	}
	return &Session[R]{inner: inner}
}

// Current returns the latest snapshot of the most recent task.
func (t *Tracker[Req, R]) Current() (Task[R], bool) {
	s := t.Session()
	if s == nil {
		return Task[R]{}, false
	}
	return s.Current(), true
}

// ErrNoSession is returned by [Tracker.Wait] before the first submission.
var ErrNoSession = errors.New("no job submitted")

// Wait blocks until the most recent session ends or ctx is done.
func (t *Tracker[Req, R]) Wait(ctx context.Context) (Task[R], error) {
	s := t.Session()
	if s == nil {
		return Task[R]{}, ErrNoSession
	}
	return s.Wait(ctx)
}
