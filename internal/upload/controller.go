// Package upload validates the user's CSV selection and hands the
// prediction result over to the analysis page.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"exoai/internal/errors"
	"exoai/ports"
)

// MaxFileSize is the largest CSV accepted for analysis
const MaxFileSize int64 = 25 << 20

// AnalysisPath is where the browser goes after a successful submit
const AnalysisPath = "/analysis"

const (
	msgNotCSV       = "Please select a CSV file"
	msgTooLarge     = "File size must be less than 25 MB"
	msgNoFile       = "Please select a file first"
	msgInProgress   = "analysis already in progress"
	msgUnknownModel = "Please select the Kepler or K2/TESS model"
)

// Upload outcomes reported to the Recorder
const (
	OutcomeSuccess       = "success"
	OutcomeValidation    = "validation_error"
	OutcomeRequestFailed = "request_error"
	OutcomeStoreFailed   = "store_error"
)

// Recorder is notified once per Submit attempt
type Recorder interface {
	ObserveUpload(model, outcome string)
}

// FileInfo describes a file picked by the user. Reader is consumed by SelectFile.
type FileInfo struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Selection is a validated file held for submission
type Selection struct {
	Name string
	Size int64
	body []byte
}

// ModelOption is one entry of the model picker
type ModelOption struct {
	ID    string
	Label string
}

// Models lists the picker entries; the first is the default
var Models = []ModelOption{
	{ID: ports.ModelKepler, Label: "Kepler"},
	{ID: ports.ModelK2, Label: "K2/TESS"},
}

// ParseModel maps an identifier or picker label onto a model identifier
func ParseModel(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ports.ModelKepler:
		return ports.ModelKepler, nil
	case ports.ModelK2, "k2/tess", "tess":
		return ports.ModelK2, nil
	}
	return "", errors.Validation(msgUnknownModel)
}

// Controller drives one upload form: file selection, model choice and submit.
// Submit may be called concurrently; only one call runs at a time.
type Controller struct {
	predictor ports.PredictorPort
	store     ports.SessionRepository
	sessionID string
	maxBytes  int64
	recorder  Recorder

	mu       sync.Mutex
	model    string
	selected *Selection
	err      error
	busy     atomic.Bool
}

// NewController creates a controller that stores results under sessionID
func NewController(predictor ports.PredictorPort, store ports.SessionRepository, sessionID string) *Controller {
	return &Controller{
		predictor: predictor,
		store:     store,
		sessionID: sessionID,
		maxBytes:  MaxFileSize,
		model:     Models[0].ID,
	}
}

// WithMaxBytes overrides the size limit
func (c *Controller) WithMaxBytes(n int64) *Controller {
	if n > 0 {
		c.maxBytes = n
	}
	return c
}

// WithRecorder attaches an outcome recorder
func (c *Controller) WithRecorder(r Recorder) *Controller {
	c.recorder = r
	return c
}

// SelectFile validates and buffers the file. On failure the previous
// selection is kept and the error is also stored for rendering.
func (c *Controller) SelectFile(file FileInfo) error {
	sel, err := c.readSelection(file)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.err = err
		return err
	}
	c.selected = sel
	c.err = nil
	return nil
}

func (c *Controller) readSelection(file FileInfo) (*Selection, error) {
	if !isCSV(file.Name, file.ContentType) {
		return nil, errors.Validation(msgNotCSV)
	}
	if file.Size > c.maxBytes {
		return nil, errors.Validation(msgTooLarge)
	}
	if file.Reader == nil {
		return nil, errors.Validation(msgNoFile)
	}

	body, err := io.ReadAll(io.LimitReader(file.Reader, c.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read uploaded file")
	}
	// declared sizes can lie
	if int64(len(body)) > c.maxBytes {
		return nil, errors.Validation(msgTooLarge)
	}
	return &Selection{Name: filepath.Base(file.Name), Size: int64(len(body)), body: body}, nil
}

// TooLargeError is the validation error for a file over the size limit,
// for callers that reject the request before SelectFile sees it
func TooLargeError() error {
	return errors.Validation(msgTooLarge)
}

// isCSV accepts a file when either the declared type or the extension says CSV
func isCSV(name, contentType string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "text/csv" {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// SelectModel records the model used by the next Submit
func (c *Controller) SelectModel(name string) error {
	model, err := ParseModel(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.err = err
		return err
	}
	c.model = model
	return nil
}

// Submit sends the selected file for classification and stores the result
// for the session. It returns the path to navigate to.
func (c *Controller) Submit(ctx context.Context) (string, error) {
	c.mu.Lock()
	sel, model := c.selected, c.model
	c.mu.Unlock()

	if sel == nil {
		return "", c.fail(model, OutcomeValidation, errors.Validation(msgNoFile))
	}
	if !c.busy.CompareAndSwap(false, true) {
		return "", errors.Validation(msgInProgress)
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()

	data, err := c.predictor.Predict(ctx, model, sel.Name, bytes.NewReader(sel.body))
	if err != nil {
		if !errors.IsRequest(err) {
			err = errors.Request("Failed to analyze file", 0, err)
		}
		return "", c.fail(model, OutcomeRequestFailed, err)
	}

	handoff := &ports.AnalysisHandoff{Data: data, FileName: sel.Name, CreatedAt: time.Now()}
	if err := c.store.Save(ctx, c.sessionID, handoff); err != nil {
		return "", c.fail(model, OutcomeStoreFailed, errors.Wrap(err, "failed to store analysis"))
	}

	c.record(model, OutcomeSuccess)
	return AnalysisPath, nil
}

func (c *Controller) fail(model, outcome string, err error) error {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.record(model, outcome)
	return err
}

func (c *Controller) record(model, outcome string) {
	if c.recorder != nil {
		c.recorder.ObserveUpload(model, outcome)
	}
}

// Busy reports whether a Submit is outstanding
func (c *Controller) Busy() bool { return c.busy.Load() }

// Err returns the last error, nil once cleared
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Selected returns the current selection, or nil
func (c *Controller) Selected() *Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Model returns the selected model identifier
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// SizeLabel formats the selection size for display
func (s *Selection) SizeLabel() string {
	const mb = 1 << 20
	if s.Size >= mb {
		return fmt.Sprintf("%.2f MB", float64(s.Size)/mb)
	}
	return fmt.Sprintf("%.1f KB", float64(s.Size)/1024)
}
