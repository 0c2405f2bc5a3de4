package cryptolab

// Status is the lifecycle state of a backend job as reported by the status
// endpoint.
//
// Status is a string type so it serializes directly to and from the backend's
// JSON. The backend emits [StatusPending], [StatusStarted], [StatusSuccess]
// and [StatusFailure]; any other value is carried through unchanged and
// treated as non-terminal.
type Status string

const (
	// StatusPending indicates the job is queued but not yet picked up.
	StatusPending Status = "PENDING"

	// StatusStarted indicates a worker is executing the job.
	StatusStarted Status = "STARTED"

	// StatusSuccess indicates the job finished and Results is populated.
	StatusSuccess Status = "SUCCESS"

	// StatusFailure indicates the job finished without a result.
	StatusFailure Status = "FAILURE"
)

// String returns the string representation of the status.
// This implements the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further transition can occur from s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Task is one snapshot of an asynchronous backend job.
//
// A Task is replaced wholesale by every poll; fields are never merged across
// snapshots. Results is non-nil only when Status is [StatusSuccess], and its
// type is fixed by the [JobKind] that produced the task.
type Task[R any] struct {
	// TaskID is the opaque identifier assigned by the backend at submission.
	TaskID string `json:"task_id"`

	// Status is the job's lifecycle state.
	Status Status `json:"status"`

	// Results holds the job payload once the task succeeds.
	Results *R `json:"results"`
}

// Placeholder returns the client-side task recorded right after a successful
// submission, before the first poll response arrives.
func Placeholder[R any](taskID string) Task[R] {
	return Task[R]{TaskID: taskID, Status: StatusPending}
}
