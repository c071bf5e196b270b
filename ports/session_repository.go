package ports

import (
	"context"
	"time"

	"exoai/domain/prediction"
	"exoai/internal/errors"
)

// ErrNoAnalysis is returned when a session has no stored analysis
var ErrNoAnalysis = errors.NoAnalysis("no analysis stored for this session")

// AnalysisHandoff is what the upload page leaves for the analysis page:
// the prediction payload and the name of the uploaded file.
type AnalysisHandoff struct {
	Data      *prediction.AnalysisData `json:"analysisResults"`
	FileName  string                   `json:"fileName"`
	CreatedAt time.Time                `json:"createdAt"`
}

// SessionRepository keeps the latest analysis per browser session.
// A new Save for the same session replaces the previous analysis.
type SessionRepository interface {
	// Save stores the handoff for sessionID, overwriting any earlier one
	Save(ctx context.Context, sessionID string, handoff *AnalysisHandoff) error

	// Load returns the handoff for sessionID or ErrNoAnalysis
	Load(ctx context.Context, sessionID string) (*AnalysisHandoff, error)

	// Delete removes the handoff for sessionID; deleting a missing session is not an error
	Delete(ctx context.Context, sessionID string) error
}
