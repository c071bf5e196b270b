// Package exoplanet talks to the remote classification service: the
// multipart predict endpoint and the model metrics endpoint.
package exoplanet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"exoai/domain/prediction"
	"exoai/internal/errors"
	"exoai/ports"
)

const (
	// DefaultTimeout bounds a whole predict or metrics round trip
	DefaultTimeout = 60 * time.Second

	// FileField is the multipart field the service reads the CSV from
	FileField = "file"

	predictPath = "/exoplanet/predict"
	metricsPath = "/exoplanet/metrics"

	defaultUserAgent = "exoai-dashboard"

	// cap on how much of an error body is kept for the message
	maxErrorBody = 4 << 10
)

// Call names reported to the Observer
const (
	CallPredict = "predict"
	CallMetrics = "metrics"
)

// Observer receives one notification per outbound call
type Observer interface {
	ObserveRemoteCall(call string, status int, err error, elapsed time.Duration)
}

// Config holds the client settings
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client implements ports.PredictorPort over HTTP.
// Thread-safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	observer  Observer
}

var _ ports.PredictorPort = (*Client)(nil)

// NewClient creates a client for the service at cfg.BaseURL
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.ConfigInvalid("exoplanet service URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("invalid exoplanet service URL %q: %w", base, err))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}, nil
}

// WithObserver attaches a call observer, typically the telemetry collector
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// BaseURL returns the normalized service root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Predict uploads the CSV under FileField and decodes the AnalysisData response.
// Exactly one request is made; there are no retries.
func (c *Client) Predict(ctx context.Context, model, fileName string, file io.Reader) (*prediction.AnalysisData, error) {
	if model != ports.ModelKepler && model != ports.ModelK2 {
		return nil, errors.Validation(fmt.Sprintf("unknown model %q", model))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(FileField, fileName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build upload body")
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, errors.Wrap(err, "failed to read upload file")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to build upload body")
	}

	endpoint := c.baseURL + predictPath + "?" + url.Values{"model": {model}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create predict request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	log.Printf("[ExoplanetClient] Uploading %s (%d bytes) with model %s", fileName, body.Len(), model)

	var data prediction.AnalysisData
	if err := c.do(req, CallPredict, "Failed to analyze file", &data); err != nil {
		return nil, err
	}
	if data.Results == nil {
		data.Results = []prediction.PredictionResult{}
	}

	log.Printf("[ExoplanetClient] Received %d predictions for %s", len(data.Results), fileName)
	return &data, nil
}

// Metrics fetches the per-model training metadata, preserving service order
func (c *Client) Metrics(ctx context.Context) ([]prediction.ModelMetrics, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+metricsPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create metrics request")
	}

	var metrics []prediction.ModelMetrics
	if err := c.do(req, CallMetrics, "Failed to fetch metrics", &metrics); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = []prediction.ModelMetrics{}
	}
	return metrics, nil
}

// do sends req and decodes a 2xx JSON body into out. Transport failures,
// non-2xx statuses and undecodable bodies all become request errors.
func (c *Client) do(req *http.Request, call, failure string, out interface{}) (err error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	status := 0
	defer func() {
		if c.observer != nil {
			c.observer.ObserveRemoteCall(call, status, err, time.Since(start))
		}
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[ExoplanetClient] %s request failed: %v", call, err)
		return errors.Request(failure, 0, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorDetail(resp.Body)
		log.Printf("[ExoplanetClient] %s returned HTTP %d: %s", call, resp.StatusCode, detail)
		return errors.Request(failure, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, detail))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Request(failure, resp.StatusCode, fmt.Errorf("invalid response body: %w", err))
	}
	return nil
}

// errorDetail extracts the service's error text, preferring a JSON "detail" field
func errorDetail(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body struct {
		Detail interface{} `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Detail != nil {
		if s, ok := body.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(body.Detail); err == nil {
			return string(b)
		}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "empty response"
	}
	return text
}
