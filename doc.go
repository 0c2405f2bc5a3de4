// Package cryptolab is a client SDK for a cryptocurrency analytics backend
// that runs its heavy analyses as asynchronous jobs.
//
// The backend explains model predictions, searches for similar historical
// charts and scores charts. Each of these is submitted as a job, answered
// with a task id, and then polled at a fixed interval until it reaches a
// terminal status. This package implements that protocol once, generically,
// and instantiates it per job kind.
//
// # Quick Start
//
//	c, err := cryptolab.New(cryptolab.WithBaseURL("http://localhost:8000"))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if _, err := c.Login(ctx, cryptolab.Credentials{Email: e, Name: n, Password: p}); err != nil {
//	    return err
//	}
//
//	req := cryptolab.NewModelRequest("BTC", day)
//	taskID, err := cryptolab.Submit(ctx, c, cryptolab.ModelExplanationJob, req)
//	if err != nil {
//	    return err // *SubmissionError carries the backend's detail
//	}
//
//	s := cryptolab.Watch(ctx, c, cryptolab.ModelExplanationJob, taskID, nil)
//	task, err := s.Wait(ctx)
//
// # Job Kinds
//
// A [JobKind] binds a request type, a result type and the endpoint paths:
//
//   - [ModelExplanationJob]: [ModelRequest] in, [ModelExplanation] out
//   - [ChartExplanationJob]: [ChartRequest] in, [ChartExplanation] out
//   - [ChartScoreJob]: [ScoreRequest] in, [ChartScore] out
//
// Because the result type is a type parameter, a payload can never be
// decoded under another kind's schema.
//
// # Polling
//
// [Watch] returns a [Session] that starts from a PENDING placeholder. The
// first status request goes out one interval later. Every response replaces
// the snapshot in full and is delivered to the [Observer]. SUCCESS and
// FAILURE end the session; so does any transport, status or decode error,
// with no retry.
//
// A [Tracker] owns one job slot and guarantees at most one running session:
// submitting again stops the previous session first, and any response still
// in flight for it is dropped.
//
// # Authentication
//
// The bearer token lives in a [session.Store] injected with [WithSession].
// Every authenticated request reads it; a 401 clears it and fails with
// [ErrUnauthorized].
//
// # Architecture
//
//   - internal/poller: HTTP client and the generic poll-until-terminal loop
//   - internal/store: snapshot storage with pub/sub for the relay server
//   - internal/server: local relay with REST, Server-Sent Events and /metrics
//   - internal/metrics: Prometheus collectors
//   - internal/render: plain-text formatting for the CLI
//   - features: feature-key label resolver
//   - session: token stores
//   - config: YAML configuration
package cryptolab
