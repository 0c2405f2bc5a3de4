package cryptolab

import (
	"errors"
	"strings"
	"time"
)

// JobKind binds a request type, a result type and the backend paths that
// create and poll that kind of job.
//
// JobKind is immutable after creation via [NewJobKind]. Because Req and R are
// fixed at compile time, a task produced by one kind can never be decoded
// under another kind's result schema.
//
// The built-in kinds are [ModelExplanationJob], [ChartExplanationJob] and
// [ChartScoreJob].
type JobKind[Req, R any] struct {
	name           string
	submitPath     string
	statusPath     string
	interval       time.Duration
	failureMessage string
	fallback       string
}

// Name returns the kind's short identifier (e.g. "model"), used in logs,
// metrics and error messages.
func (k JobKind[Req, R]) Name() string {
	return k.name
}

// SubmitPath returns the path jobs of this kind are created at.
func (k JobKind[Req, R]) SubmitPath() string {
	return k.submitPath
}

// StatusPath returns the path prefix task ids are appended to when polling.
func (k JobKind[Req, R]) StatusPath() string {
	return k.statusPath
}

// Interval returns the kind's polling interval override. Zero means the
// client's interval applies.
func (k JobKind[Req, R]) Interval() time.Duration {
	return k.interval
}

// FailureMessage returns the user-facing message attached to a [JobFailure].
func (k JobKind[Req, R]) FailureMessage() string {
	return k.failureMessage
}

// FallbackMessage returns the [SubmissionError] message used when the
// backend's error body carries no usable detail.
func (k JobKind[Req, R]) FallbackMessage() string {
	return k.fallback
}

// statusURLPath returns the poll path for taskID.
func (k JobKind[Req, R]) statusURLPath(taskID string) string {
	return strings.TrimSuffix(k.statusPath, "/") + "/" + taskID
}

// jobConfig holds mutable state during job kind construction.
type jobConfig struct {
	interval       time.Duration
	failureMessage string
	fallback       string
}

// JobOption configures a [JobKind] during construction.
type JobOption func(*jobConfig) error

// WithJobInterval overrides the polling interval for one job kind.
//
// Returns an error if the duration is zero or negative.
func WithJobInterval(d time.Duration) JobOption {
	return func(cfg *jobConfig) error {
		if d <= 0 {
			return errors.New("job interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithFailureMessage sets the message surfaced when the backend reports
// [StatusFailure].
func WithFailureMessage(msg string) JobOption {
	return func(cfg *jobConfig) error {
		if strings.TrimSpace(msg) == "" {
			return errors.New("failure message cannot be empty")
		}
		cfg.failureMessage = msg
		return nil
	}
}

// WithFallbackMessage sets the submission error message used when the error
// response has no detail.
func WithFallbackMessage(msg string) JobOption {
	return func(cfg *jobConfig) error {
		if strings.TrimSpace(msg) == "" {
			return errors.New("fallback message cannot be empty")
		}
		cfg.fallback = msg
		return nil
	}
}

// NewJobKind creates a [JobKind].
//
// submitPath is where jobs are POSTed; statusPath is the prefix the task id
// is appended to for polling. Both must be absolute paths.
//
// Example:
//
//	train, err := cryptolab.NewJobKind[TrainRequest, TrainResult](
//	    "train", "/train/", "/train",
//	    cryptolab.WithFailureMessage("training failed"),
//	)
func NewJobKind[Req, R any](name, submitPath, statusPath string, opts ...JobOption) (JobKind[Req, R], error) {
	if strings.TrimSpace(name) == "" {
		return JobKind[Req, R]{}, errors.New("job name cannot be empty")
	}
	if !strings.HasPrefix(submitPath, "/") {
		return JobKind[Req, R]{}, errors.New("submit path must start with /")
	}
	if !strings.HasPrefix(statusPath, "/") {
		return JobKind[Req, R]{}, errors.New("status path must start with /")
	}

	cfg := &jobConfig{
		failureMessage: name + " job failed",
		fallback:       name + " request failed",
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return JobKind[Req, R]{}, err
		}
	}

	return JobKind[Req, R]{
		name:           name,
		submitPath:     submitPath,
		statusPath:     statusPath,
		interval:       cfg.interval,
		failureMessage: cfg.failureMessage,
		fallback:       cfg.fallback,
	}, nil
}

// MustJobKind is like [NewJobKind] but panics on invalid input.
func MustJobKind[Req, R any](name, submitPath, statusPath string, opts ...JobOption) JobKind[Req, R] {
	k, err := NewJobKind[Req, R](name, submitPath, statusPath, opts...)
	if err != nil {
		panic("cryptolab: invalid job kind: " + err.Error())
	}
	return k
}

var (
	// ModelExplanationJob explains the model's prediction for one hour.
	ModelExplanationJob = MustJobKind[ModelRequest, ModelExplanation](
		"model", "/explain/model/", "/explain/model",
		WithFailureMessage("model explanation failed (backend error)"),
		WithFallbackMessage("model explanation request failed"),
	)

	// ChartExplanationJob searches for historically similar charts.
	ChartExplanationJob = MustJobKind[ChartRequest, ChartExplanation](
		"chart", "/explain/chart/", "/explain/chart",
		WithFailureMessage("similar chart search failed (backend error)"),
		WithFallbackMessage("similar chart search request failed"),
	)

	// ChartScoreJob scores the chart leading up to the inference time.
	ChartScoreJob = MustJobKind[ScoreRequest, ChartScore](
		"score", "/score-chart/", "/score-chart",
		WithFailureMessage("chart scoring failed (backend error)"),
		WithFallbackMessage("chart score request failed"),
	)
	// BacktestJob replays a model's saved parameter set over past candles.
	BacktestJob = MustJobKind[BacktestRequest, BacktestResult](
		"backtest", "/backtest/", "/backtest",
		WithFailureMessage("backtest failed (backend error)"),
		WithFallbackMessage("backtest request failed"),
	)
)
