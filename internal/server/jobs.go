package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/internal/store"
)

// Slot names, one per job kind.
const (
	SlotModel = "model"
	SlotChart = "chart"
	SlotScore = "score"
)

// JobRequest is the body of POST /api/jobs/{kind}.
type JobRequest struct {
	CoinSymbol string `json:"coin_symbol"`

	// Date is the selected day (YYYY-MM-DD or RFC 3339). Empty means today.
	Date string `json:"date"`

	// Timeframe and HistoryWindow apply to score jobs only; zero selects
	// the defaults.
	Timeframe     int `json:"timeframe"`
	HistoryWindow int `json:"history_window"`
}

// RequestError reports a job request rejected before anything was sent.
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string {
	return e.Msg
}

type activeTask struct {
	taskID string
	coin   string
}

// Jobs owns one [cryptolab.Tracker] per job kind and mirrors every task
// update into a [store.Store].
//
// Submitting into a slot replaces the slot's previous task; its session is
// stopped before the new job is created. If the backend then rejects the new
// job the slot is cleared, since nothing polls the old task anymore.
type Jobs struct {
	client *cryptolab.Client
	store  store.Store
	logger *slog.Logger
	now    func() time.Time

	model *cryptolab.Tracker[cryptolab.ModelRequest, cryptolab.ModelExplanation]
	chart *cryptolab.Tracker[cryptolab.ChartRequest, cryptolab.ChartExplanation]
	score *cryptolab.Tracker[cryptolab.ScoreRequest, cryptolab.ChartScore]

	// slotMu serializes Submit and Stop per slot. Observers never take it.
	slotMu map[string]*sync.Mutex

	// mu guards active only; it is never held while calling a tracker.
	mu     sync.Mutex
	active map[string]activeTask
}

// NewJobs creates idle trackers for the model, chart and score slots.
func NewJobs(c *cryptolab.Client, st store.Store, logger *slog.Logger) *Jobs {
	j := &Jobs{
		client: c,
		store:  st,
		logger: logger,
		now:    time.Now,
		slotMu: make(map[string]*sync.Mutex),
		active: make(map[string]activeTask),
	}
	for _, slot := range Slots() {
		j.slotMu[slot] = &sync.Mutex{}
	}
	j.model = cryptolab.NewTracker(c, cryptolab.ModelExplanationJob, observe[cryptolab.ModelExplanation](j, SlotModel))
	j.chart = cryptolab.NewTracker(c, cryptolab.ChartExplanationJob, observe[cryptolab.ChartExplanation](j, SlotChart))
	j.score = cryptolab.NewTracker(c, cryptolab.ChartScoreJob, observe[cryptolab.ChartScore](j, SlotScore))
	return j
}

// Slots returns the slot names in a stable order.
func Slots() []string {
	return []string{SlotChart, SlotModel, SlotScore}
}

// Submit builds the request for slot, submits it and starts polling. The
// returned snapshot is the PENDING placeholder.
//
// A [*RequestError] means the request was invalid and nothing was sent.
func (j *Jobs) Submit(ctx context.Context, slot string, in JobRequest) (store.Snapshot, error) {
	symbol := strings.ToUpper(strings.TrimSpace(in.CoinSymbol))
	if symbol == "" {
		return store.Snapshot{}, &RequestError{Msg: "coin_symbol is required"}
	}

	date := j.now().UTC()
	if in.Date != "" {
		ts, err := cryptolab.ParseTimestamp(in.Date)
		if err != nil {
			return store.Snapshot{}, &RequestError{Msg: err.Error()}
		}
		date = ts.Time
	}

	var submit func(context.Context) (string, error)
	switch slot {
	case SlotModel:
		req := cryptolab.NewModelRequest(symbol, date)
		if verr := req.Validate(); verr != nil {
			return store.Snapshot{}, &RequestError{Msg: verr.Error()}
		}
		submit = func(ctx context.Context) (string, error) { return submitInto(ctx, j.model, req) }

	case SlotChart:
		info, ierr := j.client.CoinInfo(ctx, symbol)
		if ierr != nil {
			return store.Snapshot{}, ierr
		}
		req := cryptolab.NewChartRequest(symbol, cryptolab.ClampDate(date, info), info)
		if verr := req.Validate(); verr != nil {
			return store.Snapshot{}, &RequestError{Msg: verr.Error()}
		}
		submit = func(ctx context.Context) (string, error) { return submitInto(ctx, j.chart, req) }

	case SlotScore:
		req := cryptolab.NewScoreRequest(symbol, date, in.Timeframe, in.HistoryWindow)
		if verr := req.Validate(); verr != nil {
			return store.Snapshot{}, &RequestError{Msg: verr.Error()}
		}
		submit = func(ctx context.Context) (string, error) { return submitInto(ctx, j.score, req) }

	default:
		return store.Snapshot{}, &RequestError{Msg: fmt.Sprintf("unknown job kind %q", slot)}
	}

	lock := j.slotMu[slot]
	lock.Lock()
	defer lock.Unlock()

	// Once the old session is stopped its observer is silent, so every
	// update until the next Submit belongs to the task created below.
	j.stopTracker(slot)
	j.setActive(slot, activeTask{coin: symbol})

	taskID, err := submit(ctx)
	if err != nil {
		// the previous task is gone either way
		j.clearActive(slot)
		j.store.Delete(slot)
		return store.Snapshot{}, err
	}
	j.setActive(slot, activeTask{taskID: taskID, coin: symbol})

	snap := store.Snapshot{
		Slot:       slot,
		CoinSymbol: symbol,
		TaskID:     taskID,
		Status:     cryptolab.StatusPending.String(),
	}
	// the first poll may already have landed
	if prev, ok := j.store.Get(slot); !ok || prev.TaskID != taskID {
		j.store.Update(snap)
	}

	j.logger.Info("job started", "slot", slot, "coin", symbol, "task_id", taskID)
	return snap, nil
}

func submitInto[Req, R any](ctx context.Context, t *cryptolab.Tracker[Req, R], req Req) (string, error) {
	s, err := t.Submit(ctx, req)
	if err != nil {
		return "", err
	}
	return s.Current().TaskID, nil
}

// Stop stops the slot's session and clears its snapshot. It reports false
// for an unknown slot.
func (j *Jobs) Stop(slot string) bool {
	lock, ok := j.slotMu[slot]
	if !ok {
		return false
	}
	lock.Lock()
	defer lock.Unlock()

	j.stopTracker(slot)
	j.clearActive(slot)
	j.store.Delete(slot)
	return true
}

func (j *Jobs) stopTracker(slot string) {
	switch slot {
	case SlotModel:
		j.model.Stop()
	case SlotChart:
		j.chart.Stop()
	case SlotScore:
		j.score.Stop()
	}
}

func (j *Jobs) setActive(slot string, a activeTask) {
	j.mu.Lock()
	j.active[slot] = a
	j.mu.Unlock()
}

func (j *Jobs) clearActive(slot string) {
	j.mu.Lock()
	delete(j.active, slot)
	j.mu.Unlock()
}

// StopAll stops every slot. The stored snapshots are kept.
func (j *Jobs) StopAll() {
	j.model.Stop()
	j.chart.Stop()
	j.score.Stop()
}

func (j *Jobs) coinFor(slot, taskID string) string {
	j.mu.Lock()
	defer j.mu.Unlock()

	// an empty taskID means the submission is still in flight
	if a, ok := j.active[slot]; ok && (a.taskID == taskID || a.taskID == "") {
		return a.coin
	}
	return ""
}

// observe returns the observer that mirrors a slot's updates into the store.
func observe[R any](j *Jobs, slot string) cryptolab.Observer[R] {
	return func(u cryptolab.Update[R]) {
		snap := store.Snapshot{
			Slot:   slot,
			TaskID: u.Task.TaskID,
			Status: u.Task.Status.String(),
			Final:  u.Final,
		}

		if u.Err != nil {
			msg := u.Err.Error()
			snap.Error = &msg

			// a poll error carries no task; keep the last known one
			if snap.TaskID == "" {
				if prev, ok := j.store.Get(slot); ok {
					snap.TaskID = prev.TaskID
					snap.Status = prev.Status
				}
			}
		}
		snap.CoinSymbol = j.coinFor(slot, snap.TaskID)

		if u.Task.Results != nil {
			raw, err := json.Marshal(u.Task.Results)
			if err != nil {
				j.logger.Error("failed to encode task results", "slot", slot, "task_id", snap.TaskID, "error", err)
			} else {
				snap.Results = raw
			}
		}

		j.store.Update(snap)
	}
}
