// Package metricsview loads the trained-model metadata for the metrics page.
package metricsview

import (
	"context"
	"sync"

	"exoai/domain/prediction"
	"exoai/internal/errors"
	"exoai/ports"
)

// State is the page lifecycle
type State string

const (
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateFailed  State = "failed"
)

// ModelCard is the rendered summary of one model
type ModelCard struct {
	Metrics      prediction.ModelMetrics
	Display      prediction.ModelDisplay
	TopFeatures  []FeatureScore
	FeatureCount int
	Accuracy     float64
	LastTrained  string
}

// FeatureScore pairs a feature with its importance
type FeatureScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Controller fetches metrics once per Load. No retries.
type Controller struct {
	predictor ports.PredictorPort

	mu      sync.RWMutex
	state   State
	metrics []prediction.ModelMetrics
	err     error
}

// NewController creates a controller in the loading state
func NewController(predictor ports.PredictorPort) *Controller {
	return &Controller{predictor: predictor, state: StateLoading}
}

// Load issues one metrics request and records the outcome
func (c *Controller) Load(ctx context.Context) error {
	metrics, err := c.predictor.Metrics(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if !errors.IsRequest(err) {
			err = errors.Request("Failed to fetch metrics", 0, err)
		}
		c.state = StateFailed
		c.err = err
		c.metrics = nil
		return err
	}
	c.state = StateLoaded
	c.err = nil
	c.metrics = metrics
	return nil
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Metrics returns the loaded models in service order
func (c *Controller) Metrics() []prediction.ModelMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

// Err returns the load failure, if any
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// ErrorMessage is the text shown in the failed state
func (c *Controller) ErrorMessage() string {
	return errors.Message(c.Err())
}

// Cards builds one card per loaded model, highlighting the top n features
func (c *Controller) Cards(n int) []ModelCard {
	metrics := c.Metrics()
	cards := make([]ModelCard, 0, len(metrics))
	for _, m := range metrics {
		cards = append(cards, ModelCard{
			Metrics:      m,
			Display:      m.Display(),
			TopFeatures:  TopFeatures(m, n),
			FeatureCount: m.FeatureCount(),
			Accuracy:     m.AccuracyPercent(),
			LastTrained:  m.FormattedLastTrained(),
		})
	}
	return cards
}

// TopFeatures returns the n highest-scoring features with their scores,
// descending, ties in the model's feature order
func TopFeatures(m prediction.ModelMetrics, n int) []FeatureScore {
	names := m.TopFeatures(n)
	out := make([]FeatureScore, len(names))
	for i, name := range names {
		out[i] = FeatureScore{Name: name, Score: m.FeatureImportances[name]}
	}
	return out
}
