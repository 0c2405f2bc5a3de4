package cryptolab

// ModelExplanation is the result of a model-explanation job: the model's
// prediction for the inference hour plus per-feature attributions.
type ModelExplanation struct {
	PredictionPercentile float64            `json:"prediction_percentile"`
	Recommendation       string             `json:"recommendation"`
	ShapValues           map[string]float64 `json:"shap_values"`
	FeatureValues        map[string]float64 `json:"feature_values"`
	ReferenceCharts      []ReferenceChart   `json:"reference_charts"`
	ExplanationText      string             `json:"explanation_text"`
}

// ReferenceChart is a historical chart the model considered similar.
type ReferenceChart struct {
	Timestamp  Timestamp `json:"timestamp"`
	Similarity float64   `json:"similarity"`
}

// ChartExplanation is the result of a similar-chart search.
type ChartExplanation struct {
	SimilarCharts   []SimilarChart     `json:"similar_charts"`
	FeatureValues   map[string]float64 `json:"feature_values"`
	ExplanationText string             `json:"explanation_text"`
}

// SimilarChart is a historical chart ranked by distance; lower is closer.
type SimilarChart struct {
	Timestamp Timestamp `json:"timestamp"`
	Distance  float64   `json:"distance"`
}

// ChartScore maps each scored metric to its score and explanation.
type ChartScore map[string]MetricScore

// MetricScore is one entry of a [ChartScore].
type MetricScore struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// Scored metric names, in display order.
const (
	MetricVolatilityRisk           = "volatility_risk"
	MetricOverextension            = "overextension"
	MetricDirectionality           = "directionality"
	MetricBreakoutStrength         = "breakout_strength"
	MetricAccumulationDistribution = "accumulation_distribution"
)

// ScoreMetrics lists every metric a chart score carries, in display order.
var ScoreMetrics = []string{
	MetricVolatilityRisk,
	MetricOverextension,
	MetricDirectionality,
	MetricBreakoutStrength,
	MetricAccumulationDistribution,
}

// Metric returns the named metric and whether it is present.
func (s ChartScore) Metric(name string) (MetricScore, bool) {
	m, ok := s[name]
	return m, ok
}
