package analysis

import (
	"context"
	"io"

	"exoai/domain/prediction"
	"exoai/internal/errors"
	"exoai/ports"
)

// Controller backs the analysis page: it owns the loaded data and the view state
type Controller struct {
	data      *prediction.AnalysisData
	fileName  string
	state     ViewState
	projector *Projector
}

// Load reads the session's handoff. A missing or empty handoff yields ports.ErrNoAnalysis.
func Load(ctx context.Context, repo ports.SessionRepository, sessionID string, projector *Projector) (*Controller, error) {
	handoff, err := repo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if handoff == nil || handoff.Data == nil {
		return nil, ports.ErrNoAnalysis
	}
	return NewController(handoff, projector), nil
}

// NewController wraps an already loaded handoff. projector may be nil.
func NewController(handoff *ports.AnalysisHandoff, projector *Projector) *Controller {
	if projector == nil {
		projector = NewProjector()
	}
	return &Controller{
		data:      handoff.Data,
		fileName:  handoff.FileName,
		state:     NewViewState(),
		projector: projector,
	}
}

// Data returns the full, unfiltered analysis
func (c *Controller) Data() *prediction.AnalysisData { return c.data }

// FileName returns the name of the uploaded CSV
func (c *Controller) FileName() string { return c.fileName }

// State returns the current view state
func (c *Controller) State() ViewState { return c.state }

// Restore replaces the view state, e.g. from request query parameters
func (c *Controller) Restore(state ViewState) {
	state.RowsPerPage = NormalizeRowsPerPage(state.RowsPerPage)
	if state.Filter == "" {
		state.Filter = FilterAll
	}
	if state.Page < 1 {
		state.Page = 1
	}
	c.state = state
}

func (c *Controller) SetFilter(f Filter) { c.state.SetFilter(f) }
func (c *Controller) SetQuery(q string) { c.state.SetQuery(q) }
func (c *Controller) SetRowsPerPage(n int) { c.state.SetRowsPerPage(n) }
func (c *Controller) Prev() { c.state.Prev() }
func (c *Controller) Next() { c.state.Next(c.View().TotalPages) }

// View projects the current state; the page in the state is clamped to the result
func (c *Controller) View() View {
	view := c.projector.Project(c.data, c.state)
	c.state.Page = view.Page
	return view
}

// Chart returns the pie chart shares from the summary
func (c *Controller) Chart() []ChartShare {
	return ChartShares(c.data.Summary)
}

// Confidence returns the confidence statistics over every result
func (c *Controller) Confidence() (ConfidenceSummary, error) {
	return SummarizeConfidence(c.data.Results)
}

// Intervals returns the class share intervals at the default level
func (c *Controller) Intervals() []ShareInterval {
	return ShareIntervals(c.data.Summary, DefaultIntervalLevel)
}

// ExportCSV writes the complete result set, regardless of filter and search
func (c *Controller) ExportCSV(w io.Writer) error {
	if err := ExportCSV(w, c.data); err != nil {
		return errors.Wrap(err, "CSV export failed")
	}
	return nil
}

// ExportXLSX writes the complete result set as a workbook
func (c *Controller) ExportXLSX(w io.Writer) error {
	if err := ExportXLSX(w, c.data); err != nil {
		return errors.Wrap(err, "XLSX export failed")
	}
	return nil
}

// ExportFileName is the CSV download name
func (c *Controller) ExportFileName() string { return ExportFileName(c.fileName) }

// ExportXLSXFileName is the workbook download name
func (c *Controller) ExportXLSXFileName() string { return ExportXLSXFileName(c.fileName) }
