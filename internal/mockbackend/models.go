package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Model is a backtestable strategy with its saved parameter sets.
type Model struct {
	Type      string
	ParamSets []string
	Schema    map[string]map[string]any
}

// Models is the served model catalog.
var Models = map[string]Model{
	"LightGBMStrategy": {
		Type:      "tree_based",
		ParamSets: []string{"btc_1h_v1", "btc_1h_v2"},
		Schema: map[string]map[string]any{
			"buy_threshold":    {"default": 0.05, "type": "float"},
			"sell_threshold":   {"default": -0.05, "type": "float"},
			"learning_rate":    {"default": 0.05, "type": "float"},
			"num_leaves":       {"default": 15, "type": "int"},
			"min_data_in_leaf": {"default": 20, "type": "int"},
		},
	},
	"RandomStrategy": {
		Type:      "rule_based",
		ParamSets: []string{"default"},
		Schema: map[string]map[string]any{
			"buy_prob":  {"default": 0.3, "options": []float64{0.1, 0.2, 0.3, 0.4, 0.5}},
			"sell_prob": {"default": 0.3, "options": []float64{0.1, 0.2, 0.3, 0.4, 0.5}},
		},
	},
}

func (b *Backend) handleListModels(w http.ResponseWriter, r *http.Request) {
	names := make(map[string][]string, len(Models))
	for name, m := range Models {
		names[name] = m.ParamSets
	}
	writeJSON(w, http.StatusOK, map[string]any{"all_param_names": names})
}

func (b *Backend) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ModelName string `json:"model_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeValidation(w, "body", "invalid JSON body")
		return
	}

	m, ok := Models[strings.TrimSpace(in.ModelName)]
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("model '%s' not found", in.ModelName))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model_name":        in.ModelName,
		"model_type":        m.Type,
		"hyperparam_schema": m.Schema,
	})
}
