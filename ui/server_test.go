package ui

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"exoai/domain/prediction"
	"exoai/internal/analysis"
	"exoai/internal/errors"
	"exoai/internal/session"
	"exoai/internal/telemetry"
	"exoai/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCookie  = "exoai_session"
	testSession = "6f1c2f4e-8a4b-4c1d-9a57-3e0d5c7b9a10"
)

type fakePredictor struct {
	mu       sync.Mutex
	data     *prediction.AnalysisData
	metrics  []prediction.ModelMetrics
	err      error
	calls    int
	model    string
	fileName string
	body     string
}

func (f *fakePredictor) Predict(ctx context.Context, model, fileName string, file io.Reader) (*prediction.AnalysisData, error) {
	raw, _ := io.ReadAll(file)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.model, f.fileName, f.body = model, fileName, string(raw)
	return f.data, f.err
}

func (f *fakePredictor) Metrics(ctx context.Context) ([]prediction.ModelMetrics, error) {
	return f.metrics, f.err
}

func makeData(n int) *prediction.AnalysisData {
	results := make([]prediction.PredictionResult, n)
	summary := prediction.AnalysisSummary{Total: n}
	for i := range results {
		class := prediction.Classes[i%len(prediction.Classes)]
		results[i] = prediction.PredictionResult{
			ID:          fmt.Sprintf("K%05d.01", i+1),
			Prediction:  class,
			Probability: prediction.Probabilities{Candidate: 0.1, Confirmed: 0.8, FalsePositive: 0.1},
			Confidence:  float64(i%10) + 0.5,
		}
		switch class {
		case prediction.Confirmed:
			summary.Confirmed++
		case prediction.Candidate:
			summary.Candidate++
		case prediction.FalsePositive:
			summary.FalsePositive++
		}
	}
	return &prediction.AnalysisData{Summary: summary, Results: results}
}

type testEnv struct {
	server    *Server
	predictor *fakePredictor
	store     *session.MemoryStore
	metrics   *telemetry.Metrics
}

func newTestEnv(t *testing.T, predictor *fakePredictor) *testEnv {
	t.Helper()
	metrics, err := telemetry.NewMetrics()
	require.NoError(t, err)
	store := session.NewMemoryStore(time.Minute)

	s, err := NewServer(Options{
		Predictor:  predictor,
		Store:      store,
		Metrics:    metrics,
		CookieName: testCookie,
		SessionTTL: time.Minute,
		GinMode:    gin.TestMode,
	})
	require.NoError(t, err)
	return &testEnv{server: s, predictor: predictor, store: store, metrics: metrics}
}

func (e *testEnv) seed(t *testing.T, n int) *prediction.AnalysisData {
	t.Helper()
	data := makeData(n)
	require.NoError(t, e.store.Save(context.Background(), testSession, &ports.AnalysisHandoff{
		Data:     data,
		FileName: "koi.csv",
	}))
	return data
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: testCookie, Value: testSession})
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) scrape(t *testing.T) string {
	t.Helper()
	rec := e.get("/debug/prometheus")
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.serve(httptest.NewRequest(http.MethodGet, path, nil))
}

func uploadRequest(t *testing.T, fileName, contentType, body, model string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
	}
	if model != "" {
		require.NoError(t, mw.WriteField("model", model))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadPage(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{})

	rec := env.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Kepler")
	assert.Contains(t, rec.Body.String(), "K2/TESS")
	assert.Contains(t, rec.Body.String(), `value="kepler" checked`)
	assert.NotContains(t, rec.Body.String(), "No analysis yet")

	rec = env.get("/?notice=no-analysis")
	assert.Contains(t, rec.Body.String(), "No analysis yet")
	assert.Contains(t, env.scrape(t), `exoai_page_views_total{page="upload"} 2`)
}

func TestSessionCookieIssued(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{})

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), testCookie+"=")
}

func TestUploadRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		contentType string
		body        string
		model       string
		status      int
		message     string
	}{
		{"not a csv", "notes.txt", "text/plain", "hello", "kepler", http.StatusBadRequest, "Please select a CSV file"},
		{"no file", "", "", "", "kepler", http.StatusBadRequest, "Please select a file first"},
		{"unknown model", "koi.csv", "text/csv", "a\n1\n", "hubble", http.StatusBadRequest, "Kepler or K2/TESS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakePredictor{data: makeData(3)})

			rec := env.serve(uploadRequest(t, tt.fileName, tt.contentType, tt.body, tt.model))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Equal(t, 0, env.predictor.calls)
			assert.Equal(t, 0, env.store.Len())
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	metrics, err := telemetry.NewMetrics()
	require.NoError(t, err)
	predictor := &fakePredictor{data: makeData(1)}
	store := session.NewMemoryStore(time.Minute)
	s, err := NewServer(Options{
		Predictor:      predictor,
		Store:          store,
		Metrics:        metrics,
		CookieName:     testCookie,
		MaxUploadBytes: 64,
		GinMode:        gin.TestMode,
	})
	require.NoError(t, err)

	req := uploadRequest(t, "big.csv", "text/csv", strings.Repeat("x", 65), "kepler")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "File size must be less than 25 MB")
	assert.Equal(t, 0, predictor.calls)
}

func TestUploadSuccess(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{data: makeData(5)})

	rec := env.serve(uploadRequest(t, "koi.csv", "text/csv", "kepid\n1\n", "k2"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/analysis", rec.Header().Get("Location"))

	assert.Equal(t, 1, env.predictor.calls)
	assert.Equal(t, ports.ModelK2, env.predictor.model)
	assert.Equal(t, "koi.csv", env.predictor.fileName)
	assert.Equal(t, "kepid\n1\n", env.predictor.body)

	handoff, err := env.store.Load(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, "koi.csv", handoff.FileName)
	assert.Len(t, handoff.Data.Results, 5)
	assert.Contains(t, env.scrape(t), `exoai_uploads_total{model="k2",outcome="success"} 1`)
}

func TestUploadRemoteFailure(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{
		err: errors.Request("Failed to analyze file", http.StatusInternalServerError, fmt.Errorf("HTTP 500: boom")),
	})

	rec := env.serve(uploadRequest(t, "koi.csv", "text/csv", "a\n1\n", "kepler"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to analyze file")
	assert.Equal(t, 0, env.store.Len())
}

func TestUploadReplacesPreviousAnalysis(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{data: makeData(30)})
	env.seed(t, 12)

	// warm the projector with the old data
	require.Contains(t, env.get("/analysis").Body.String(), "12 of 12 rows")

	rec := env.serve(uploadRequest(t, "new.csv", "text/csv", "a\n1\n", "kepler"))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body := env.get("/analysis").Body.String()
	assert.Contains(t, body, "new.csv")
	assert.Contains(t, body, "30 of 30 rows")
}

func TestAnalysisRedirectsWithoutData(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{})

	for _, path := range []string{"/analysis", "/analysis/export.csv", "/analysis/export.xlsx"} {
		rec := env.get(path)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/?notice=no-analysis", rec.Header().Get("Location"), path)
	}
}

func TestAnalysisPage(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{})
	env.seed(t, 23)

	rec := env.get("/analysis?rows=10&page=3")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Page 3 of 3")
	assert.Contains(t, body, "K00023.01")
	assert.NotContains(t, body, "K00001.01")
	assert.Contains(t, body, "23 of 23 rows")
	assert.Contains(t, body, "conic-gradient")

	// out of range pages clamp to the last one
	rec = env.get("/analysis?page=99")
	assert.Contains(t, rec.Body.String(), "Page 3 of 3")
}

func TestAnalysisFilterAndSearch(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{})
	env.seed(t, 30)

	rec := env.get("/analysis?filter=candidate&q=k0000")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	// candidates among K00001..K00009 are rows 2, 5 and 8
	assert.Contains(t, body, "3 of 30 rows")
	assert.Contains(t, body, "K00002.01")
	assert.NotContains(t, body, "K00001.01")
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{})
	data := env.seed(t, 23)

	rec := env.get("/analysis/export.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=koi_analysis.csv`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, analysis.CSVContentType, rec.Header().Get("Content-Type"))

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 24)
	assert.Equal(t, analysis.ExportHeader, records[0])
	assert.Equal(t, analysis.ExportRow(data.Results[22]), records[23])
	assert.Contains(t, env.scrape(t), `exoai_exports_total{format="csv"} 1`)
}

func TestExportXLSX(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{})
	env.seed(t, 4)

	rec := env.get("/analysis/export.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=koi_analysis.xlsx`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, analysis.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())
}

func TestMetricsPage(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{metrics: []prediction.ModelMetrics{
		{
			ModelName:          "kepler",
			Accuracy:           0.93,
			Features:           []string{"koi_score", "koi_prad"},
			FeatureImportances: map[string]float64{"koi_score": 0.4, "koi_prad": 0.2},
			LastTrained:        "2025-10-04T12:30:00",
		},
	}})

	rec := env.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "93.00%")
	assert.Contains(t, body, "koi_score")
	assert.Contains(t, body, "Oct 4, 2025, 12:30 PM")
}

func TestMetricsPageFailure(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{
		err: errors.Request("Failed to fetch metrics", http.StatusServiceUnavailable, fmt.Errorf("HTTP 503")),
	})

	rec := env.get("/metrics")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to fetch metrics")
}

func TestAPIMountedUnderSession(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{})
	env.seed(t, 3)

	rec := env.get("/api/analysis")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fileName":"koi.csv"`)

	rec = env.get("/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakePredictor{})
	env.get("/")

	assert.Contains(t, env.scrape(t), `exoai_page_views_total{page="upload"} 1`)
}

func TestViewURL(t *testing.T) {
	tests := []struct {
		state analysis.ViewState
		want  string
	}{
		{analysis.NewViewState(), "/analysis"},
		{analysis.ViewState{Filter: analysis.FilterConfirmed, RowsPerPage: 10, Page: 1}, "/analysis?filter=confirmed"},
		{analysis.ViewState{Filter: analysis.FilterAll, Query: "K007", RowsPerPage: 25, Page: 2}, "/analysis?page=2&q=K007&rows=25"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, viewURL(tt.state))
		})
	}
}
