package prediction

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultTopFeatures is how many features the metrics page highlights
const DefaultTopFeatures = 5

// ModelMetrics describes one trained model as reported by the metrics endpoint
type ModelMetrics struct {
	ModelName          string             `json:"model_name"`
	Classes            []string           `json:"classes"`
	Features           []string           `json:"features"`
	FeatureImportances map[string]float64 `json:"feature_importances"`
	Accuracy           float64            `json:"accuracy"`
	LastTrained        string             `json:"last_trained"`
}

// ModelDisplay is the presentation info for a model family
type ModelDisplay struct {
	Name        string
	Description string
}

// FeatureCount returns the number of features with an importance score
func (m ModelMetrics) FeatureCount() int {
	return len(m.FeatureImportances)
}

// featureOrder returns every scored feature in a deterministic base order:
// the declared feature list first, then any remaining names alphabetically.
func (m ModelMetrics) featureOrder() []string {
	seen := make(map[string]bool, len(m.FeatureImportances))
	order := make([]string, 0, len(m.FeatureImportances))
	for _, name := range m.Features {
		if _, ok := m.FeatureImportances[name]; ok && !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	var rest []string
	for name := range m.FeatureImportances {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// TopFeatures returns up to n feature names by descending importance.
// Ties keep the base order from featureOrder.
func (m ModelMetrics) TopFeatures(n int) []string {
	if n <= 0 {
		return []string{}
	}
	names := m.featureOrder()
	sort.SliceStable(names, func(i, j int) bool {
		return m.FeatureImportances[names[i]] > m.FeatureImportances[names[j]]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

var lastTrainedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LastTrainedTime parses the service timestamp, which may or may not carry a zone
func (m ModelMetrics) LastTrainedTime() (time.Time, error) {
	raw := strings.TrimSpace(m.LastTrained)
	for _, layout := range lastTrainedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized last_trained timestamp %q", m.LastTrained)
}

// FormattedLastTrained renders the timestamp as "Jan 2, 2006, 3:04 PM", or the raw value if unparseable
func (m ModelMetrics) FormattedLastTrained() string {
	t, err := m.LastTrainedTime()
	if err != nil {
		return m.LastTrained
	}
	return t.Format("Jan 2, 2006, 3:04 PM")
}

// AccuracyPercent normalizes accuracy to a percentage; the service reports a fraction
func (m ModelMetrics) AccuracyPercent() float64 {
	if m.Accuracy <= 1 {
		return m.Accuracy * 100
	}
	return m.Accuracy
}

// Display returns the model family presentation
func (m ModelMetrics) Display() ModelDisplay {
	if strings.Contains(strings.ToLower(m.ModelName), "kepler") {
		return ModelDisplay{
			Name:        "Kepler",
			Description: "Measurements of the physical and orbital properties of Kepler objects of interest",
		}
	}
	return ModelDisplay{
		Name:        "K2",
		Description: "Parameters derived from K2/TESS transit photometry",
	}
}
