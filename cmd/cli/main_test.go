package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"exoai/adapters/exoplanet"
	"exoai/domain/prediction"
	"exoai/internal/metricsview"

	"github.com/fatih/color"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestTopByConfidence(t *testing.T) {
	results := []prediction.PredictionResult{
		{ID: "a", Confidence: 2},
		{ID: "b", Confidence: 9},
		{ID: "c", Confidence: 9},
		{ID: "d", Confidence: 5},
	}

	top := topByConfidence(results, 3)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"b", "c", "d"}, []string{top[0].ID, top[1].ID, top[2].ID})
	assert.Equal(t, "a", results[0].ID, "input untouched")

	assert.Nil(t, topByConfidence(results, 0))
	assert.Len(t, topByConfidence(results, 10), 4)
}

func TestPrintMetrics(t *testing.T) {
	var buf bytes.Buffer
	printMetrics(&buf, []metricsview.ModelCard{{
		Metrics:      prediction.ModelMetrics{ModelName: "kepler"},
		Display:      prediction.ModelDisplay{Name: "Kepler"},
		TopFeatures:  []metricsview.FeatureScore{{Name: "koi_score", Score: 0.4}},
		FeatureCount: 12,
		Accuracy:     93,
		LastTrained:  "Oct 4, 2025, 12:30 PM",
	}})

	out := buf.String()
	assert.Contains(t, out, "Kepler (kepler)")
	assert.Contains(t, out, "Accuracy:     93.00%")
	assert.Contains(t, out, "1. koi_score")

	buf.Reset()
	printMetrics(&buf, nil)
	assert.Equal(t, "No trained models reported\n", buf.String())
}

func TestRunPredictWritesExport(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder("POST", "http://exoplanet.test/exoplanet/predict",
		httpmock.NewStringResponder(http.StatusOK, `{
		  "summary": {"total": 1, "confirmed": 1, "candidate": 0, "false_positive": 0, "high_confidence": 1},
		  "results": [{"id": "K00752.01", "prediction": "confirmed", "probability": [0.05, 0.90, 0.05], "confidence": 8.7}]
		}`))

	dir := t.TempDir()
	in := filepath.Join(dir, "koi.csv")
	require.NoError(t, os.WriteFile(in, []byte("kepid\n1\n"), 0o600))
	out := filepath.Join(dir, "koi_analysis.csv")

	client, err := exoplanet.NewClient(exoplanet.Config{BaseURL: "http://exoplanet.test"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, runPredict(context.Background(), &buf, client, "kepler", in, out, 5))

	assert.Contains(t, buf.String(), "Analysis of koi.csv")
	assert.Contains(t, buf.String(), "K00752.01")

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(written), "K00752.01,confirmed,8.7,5.00%,90.00%,5.00%")
}

type failingCloser struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (f *failingCloser) Close() error {
	f.closed = true
	return f.closeErr
}

func TestExportToReportsCloseError(t *testing.T) {
	data := &prediction.AnalysisData{Results: []prediction.PredictionResult{
		{ID: "K00752.01", Prediction: prediction.Confirmed, Confidence: 8.7},
	}}
	diskFull := errors.New("no space left on device")

	tests := []struct {
		name string
		xlsx bool
	}{
		{"csv", false},
		{"xlsx", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &failingCloser{closeErr: diskFull}
			err := exportTo(w, tt.xlsx, data)
			assert.ErrorIs(t, err, diskFull)
			assert.True(t, w.closed)
			assert.NotZero(t, w.Len())
		})
	}

	ok := &failingCloser{}
	require.NoError(t, exportTo(ok, false, data))
	assert.True(t, ok.closed)
}
