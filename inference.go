package cryptolab

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultTimeframe is the candle size in minutes used for every job.
	DefaultTimeframe = 60

	// DefaultHistoryWindow is the number of candles a chart score looks back.
	DefaultHistoryWindow = 120

	// MinHistoryWindow is the smallest history window the backend accepts.
	MinHistoryWindow = 24
)

// Timestamp is a UTC instant exchanged with the backend.
//
// The backend emits naive ISO-8601 datetimes (no zone), which the standard
// time.Time decoder rejects; Timestamp accepts both zoned and naive forms and
// reads naive values as UTC. It always encodes as millisecond ISO-8601 in UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses s using the layouts the backend is known to emit.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{t.UTC()}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format("2006-01-02T15:04:05.000Z") + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ModelRequest is the body of a model-explanation submission.
type ModelRequest struct {
	CoinSymbol    string    `json:"coin_symbol"`
	Timeframe     int       `json:"timeframe"`
	InferenceTime Timestamp `json:"inference_time"`
}

// Validate checks the request before it is sent.
func (r ModelRequest) Validate() error {
	return validateJob(r.CoinSymbol, r.Timeframe, r.InferenceTime)
}

// ChartRequest is the body of a similar-chart search. Start and End bound
// the history searched and normally come from [CoinInfo].
type ChartRequest struct {
	CoinSymbol    string    `json:"coin_symbol"`
	Timeframe     int       `json:"timeframe"`
	InferenceTime Timestamp `json:"inference_time"`
	Start         Timestamp `json:"start"`
	End           Timestamp `json:"end"`
}

// Validate checks the request before it is sent.
func (r ChartRequest) Validate() error {
	if err := validateJob(r.CoinSymbol, r.Timeframe, r.InferenceTime); err != nil {
		return err
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("start and end are required")
	}
	if r.End.Before(r.Start.Time) {
		return errors.New("end must not be before start")
	}
	return nil
}

// ScoreRequest is the body of a chart-score submission.
type ScoreRequest struct {
	CoinSymbol    string    `json:"coin_symbol"`
	Timeframe     int       `json:"timeframe"`
	InferenceTime Timestamp `json:"inference_time"`
	HistoryWindow int       `json:"history_window"`
}

// Validate checks the request before it is sent.
func (r ScoreRequest) Validate() error {
	if err := validateJob(r.CoinSymbol, r.Timeframe, r.InferenceTime); err != nil {
		return err
	}
	if r.HistoryWindow < MinHistoryWindow {
		return fmt.Errorf("history window must be at least %d, got %d", MinHistoryWindow, r.HistoryWindow)
	}
	return nil
}

func validateJob(symbol string, timeframe int, at Timestamp) error {
	if strings.TrimSpace(symbol) == "" {
		return errors.New("coin symbol cannot be empty")
	}
	if timeframe <= 0 {
		return fmt.Errorf("timeframe must be positive, got %d", timeframe)
	}
	if at.IsZero() {
		return errors.New("inference time is required")
	}
	return nil
}

// StartOfDay returns 00:00 UTC of date's calendar day in UTC.
func StartOfDay(date time.Time) time.Time {
	y, m, d := date.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ModelInferenceTime returns the hour the model explains for a selected day:
// the last complete hour before the day starts.
func ModelInferenceTime(date time.Time) time.Time {
	return StartOfDay(date).Add(-time.Hour).Truncate(time.Hour)
}

// ChartInferenceTime returns the instant charts are searched and scored at
// for a selected day.
func ChartInferenceTime(date time.Time) time.Time {
	return StartOfDay(date)
}

// ClampDate moves date into the coin's available window. A zero bound is
// ignored.
func ClampDate(date time.Time, info CoinInfo) time.Time {
	if !info.AvailableEnd.IsZero() && date.After(info.AvailableEnd.Time) {
		return info.AvailableEnd.Time
	}
	if !info.AvailableStart.IsZero() && date.Before(info.AvailableStart.Time) {
		return info.AvailableStart.Time
	}
	return date
}

// NewModelRequest builds a model-explanation request for symbol on date.
func NewModelRequest(symbol string, date time.Time) ModelRequest {
	return ModelRequest{
		CoinSymbol:    strings.ToUpper(symbol),
		Timeframe:     DefaultTimeframe,
		InferenceTime: Timestamp{ModelInferenceTime(date)},
	}
}

// NewChartRequest builds a similar-chart request for symbol on date,
// searching the coin's full available window.
func NewChartRequest(symbol string, date time.Time, info CoinInfo) ChartRequest {
	return ChartRequest{
		CoinSymbol:    strings.ToUpper(symbol),
		Timeframe:     DefaultTimeframe,
		InferenceTime: Timestamp{ChartInferenceTime(date)},
		Start:         info.AvailableStart,
		End:           info.AvailableEnd,
	}
}

// NewScoreRequest builds a chart-score request for symbol on date. A
// historyWindow of zero selects [DefaultHistoryWindow].
func NewScoreRequest(symbol string, date time.Time, timeframe, historyWindow int) ScoreRequest {
	if timeframe == 0 {
		timeframe = DefaultTimeframe
	}
	if historyWindow == 0 {
		historyWindow = DefaultHistoryWindow
	}
	return ScoreRequest{
		CoinSymbol:    strings.ToUpper(symbol),
		Timeframe:     timeframe,
		InferenceTime: Timestamp{ChartInferenceTime(date)},
		HistoryWindow: historyWindow,
	}
}
