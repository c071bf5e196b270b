package ports

import (
	"context"
	"io"

	"exoai/domain/prediction"
)

// Model identifiers accepted by the prediction service
const (
	ModelKepler = "kepler"
	ModelK2     = "k2"
)

// PredictorPort is the remote exoplanet classification service
type PredictorPort interface {
	// Predict uploads a CSV and returns the per-row classification
	Predict(ctx context.Context, model, fileName string, file io.Reader) (*prediction.AnalysisData, error)

	// Metrics returns the trained model metadata, in service order
	Metrics(ctx context.Context) ([]prediction.ModelMetrics, error)
}
