package upload

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"exoai/domain/prediction"
	"exoai/internal/errors"
	"exoai/internal/session"
	"exoai/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Predict(ctx context.Context, model, fileName string, file io.Reader) (*prediction.AnalysisData, error) {
	body, _ := io.ReadAll(file)
	args := m.Called(ctx, model, fileName, string(body))
	data, _ := args.Get(0).(*prediction.AnalysisData)
	return data, args.Error(1)
}

func (m *mockPredictor) Metrics(ctx context.Context) ([]prediction.ModelMetrics, error) {
	args := m.Called(ctx)
	metrics, _ := args.Get(0).([]prediction.ModelMetrics)
	return metrics, args.Error(1)
}

type recorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorder) ObserveUpload(model, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, model+":"+outcome)
}

func csvFile(name, body string) FileInfo {
	return FileInfo{Name: name, ContentType: "text/csv", Size: int64(len(body)), Reader: strings.NewReader(body)}
}

func sampleData() *prediction.AnalysisData {
	return &prediction.AnalysisData{
		Summary: prediction.AnalysisSummary{Total: 1, Confirmed: 1},
		Results: []prediction.PredictionResult{{ID: "K00752.01", Prediction: prediction.Confirmed}},
	}
}

func TestSelectFile(t *testing.T) {
	tests := []struct {
		name    string
		file    FileInfo
		wantErr string
	}{
		{"csv type and extension", csvFile("koi.csv", "a,b\n"), ""},
		{"extension only", FileInfo{Name: "koi.CSV", ContentType: "application/octet-stream", Size: 4, Reader: strings.NewReader("a,b\n")}, ""},
		{"type only", FileInfo{Name: "export", ContentType: "text/csv; charset=utf-8", Size: 4, Reader: strings.NewReader("a,b\n")}, ""},
		{"neither", FileInfo{Name: "koi.xlsx", ContentType: "application/vnd.ms-excel", Size: 4, Reader: strings.NewReader("a,b\n")}, msgNotCSV},
		{"declared too large", FileInfo{Name: "koi.csv", ContentType: "text/csv", Size: MaxFileSize + 1, Reader: strings.NewReader("")}, msgTooLarge},
		{"no reader", FileInfo{Name: "koi.csv", ContentType: "text/csv"}, msgNoFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(&mockPredictor{}, session.NewMemoryStore(time.Minute), "s1")
			err := c.SelectFile(tt.file)
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.NotNil(t, c.Selected())
				assert.NoError(t, c.Err())
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Equal(t, tt.wantErr, errors.Message(err))
			assert.Nil(t, c.Selected())
			assert.Equal(t, err, c.Err())
		})
	}
}

func TestSelectFileUnderstatedSize(t *testing.T) {
	c := NewController(&mockPredictor{}, session.NewMemoryStore(time.Minute), "s1").WithMaxBytes(8)

	err := c.SelectFile(FileInfo{Name: "koi.csv", Size: 2, Reader: strings.NewReader("0123456789")})
	assert.True(t, errors.IsValidation(err))
	assert.Nil(t, c.Selected())
}

func TestInvalidSelectionKeepsPrevious(t *testing.T) {
	c := NewController(&mockPredictor{}, session.NewMemoryStore(time.Minute), "s1")
	require.NoError(t, c.SelectFile(csvFile("koi.csv", "a\n1\n")))

	require.Error(t, c.SelectFile(csvFile("notes.txt", "x")))
	assert.Equal(t, "koi.csv", c.Selected().Name)
	assert.Error(t, c.Err())

	require.NoError(t, c.SelectFile(csvFile("k2.csv", "a\n2\n")))
	assert.Equal(t, "k2.csv", c.Selected().Name)
	assert.NoError(t, c.Err(), "a valid selection clears prior errors")
}

func TestSelectModel(t *testing.T) {
	c := NewController(&mockPredictor{}, session.NewMemoryStore(time.Minute), "s1")
	assert.Equal(t, ports.ModelKepler, c.Model())

	for input, want := range map[string]string{"Kepler": "kepler", "k2": "k2", "K2/TESS": "k2"} {
		require.NoError(t, c.SelectModel(input))
		assert.Equal(t, want, c.Model())
	}

	require.NoError(t, c.SelectModel("k2"))
	assert.True(t, errors.IsValidation(c.SelectModel("hubble")))
	assert.Equal(t, ports.ModelK2, c.Model())
}

func TestSubmitWithoutFile(t *testing.T) {
	predictor := &mockPredictor{}
	c := NewController(predictor, session.NewMemoryStore(time.Minute), "s1")

	_, err := c.Submit(context.Background())
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, msgNoFile, errors.Message(err))
	predictor.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitStoresHandoff(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(time.Minute)
	predictor := &mockPredictor{}
	data := sampleData()
	predictor.On("Predict", ctx, "k2", "koi.csv", "kepid\n1\n").Return(data, nil).Once()
	rec := &recorder{}

	c := NewController(predictor, store, "s1").WithRecorder(rec)
	require.NoError(t, c.SelectModel("K2/TESS"))
	require.NoError(t, c.SelectFile(csvFile("koi.csv", "kepid\n1\n")))

	next, err := c.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, AnalysisPath, next)
	assert.False(t, c.Busy())

	handoff, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "koi.csv", handoff.FileName)
	assert.Equal(t, data.Results, handoff.Data.Results)
	assert.Equal(t, []string{"k2:success"}, rec.outcomes)
	predictor.AssertExpectations(t)
}

func TestSubmitFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(time.Minute)
	require.NoError(t, store.Save(ctx, "s1", &ports.AnalysisHandoff{FileName: "old.csv", Data: sampleData()}))

	predictor := &mockPredictor{}
	predictor.On("Predict", ctx, "kepler", "koi.csv", "a\n").
		Return(nil, errors.Request("Failed to analyze file", 500, fmt.Errorf("HTTP 500"))).Twice()

	c := NewController(predictor, store, "s1")
	require.NoError(t, c.SelectFile(csvFile("koi.csv", "a\n")))

	_, err := c.Submit(ctx)
	assert.True(t, errors.IsRequest(err))
	assert.Equal(t, err, c.Err())

	// resubmission re-sends the buffered file
	_, err = c.Submit(ctx)
	assert.True(t, errors.IsRequest(err))

	handoff, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "old.csv", handoff.FileName)
	assert.Equal(t, "koi.csv", c.Selected().Name)
	predictor.AssertExpectations(t)
}

func TestSubmitWrapsPlainErrors(t *testing.T) {
	ctx := context.Background()
	predictor := &mockPredictor{}
	predictor.On("Predict", ctx, "kepler", "koi.csv", "a\n").Return(nil, context.DeadlineExceeded)

	c := NewController(predictor, session.NewMemoryStore(time.Minute), "s1")
	require.NoError(t, c.SelectFile(csvFile("koi.csv", "a\n")))

	_, err := c.Submit(ctx)
	assert.True(t, errors.IsRequest(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type blockingPredictor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingPredictor) Predict(ctx context.Context, model, fileName string, file io.Reader) (*prediction.AnalysisData, error) {
	close(b.started)
	<-b.release
	return sampleData(), nil
}

func (b *blockingPredictor) Metrics(ctx context.Context) ([]prediction.ModelMetrics, error) {
	return nil, nil
}

func TestSubmitRejectsDuplicateInFlight(t *testing.T) {
	predictor := &blockingPredictor{started: make(chan struct{}), release: make(chan struct{})}
	c := NewController(predictor, session.NewMemoryStore(time.Minute), "s1")
	require.NoError(t, c.SelectFile(csvFile("koi.csv", "a\n")))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()

	<-predictor.started
	assert.True(t, c.Busy())

	_, err := c.Submit(context.Background())
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, msgInProgress, errors.Message(err))

	close(predictor.release)
	require.NoError(t, <-done)
	assert.False(t, c.Busy())
}

func TestSizeLabel(t *testing.T) {
	assert.Equal(t, "2.0 KB", (&Selection{Size: 2048}).SizeLabel())
	assert.Equal(t, "1.50 MB", (&Selection{Size: 3 << 19}).SizeLabel())
}
