package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"exoai/domain/prediction"
	"exoai/internal/errors"
	"exoai/ports"

	"github.com/jmoiron/sqlx"
)

// sessionRow mirrors the analysis_sessions table
type sessionRow struct {
	SessionID string    `db:"session_id"`
	FileName  string    `db:"file_name"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// SessionRepositoryImpl implements SessionRepository for PostgreSQL.
// Rows past their expiry are invisible to Load and removed by PurgeExpired.
type SessionRepositoryImpl struct {
	db  *sqlx.DB
	ttl time.Duration
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB, ttl time.Duration) *SessionRepositoryImpl {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &SessionRepositoryImpl{db: db, ttl: ttl}
}

var _ ports.SessionRepository = (*SessionRepositoryImpl)(nil)

// Save upserts the session's analysis, replacing any earlier one
func (r *SessionRepositoryImpl) Save(ctx context.Context, sessionID string, handoff *ports.AnalysisHandoff) error {
	row, err := encodeSession(sessionID, handoff, time.Now(), r.ttl)
	if err != nil {
		return err
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO analysis_sessions (session_id, file_name, payload, created_at, expires_at)
		VALUES (:session_id, :file_name, :payload, :created_at, :expires_at)
		ON CONFLICT (session_id) DO UPDATE
		SET file_name = EXCLUDED.file_name,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`, row)
	if err != nil {
		return errors.DatabaseError("failed to save analysis session", err)
	}
	return nil
}

// Load returns the live handoff for sessionID or ports.ErrNoAnalysis
func (r *SessionRepositoryImpl) Load(ctx context.Context, sessionID string) (*ports.AnalysisHandoff, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, `
		SELECT session_id, file_name, payload, created_at, expires_at
		FROM analysis_sessions
		WHERE session_id = $1 AND expires_at > NOW()
	`, sessionID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNoAnalysis
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to load analysis session", err)
	}
	return decodeSession(row)
}

// Delete removes the session's analysis
func (r *SessionRepositoryImpl) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM analysis_sessions WHERE session_id = $1`, sessionID); err != nil {
		return errors.DatabaseError("failed to delete analysis session", err)
	}
	return nil
}

// PurgeExpired deletes every expired row and reports how many were removed
func (r *SessionRepositoryImpl) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM analysis_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, errors.DatabaseError("failed to purge expired sessions", err)
	}
	return result.RowsAffected()
}

func encodeSession(sessionID string, handoff *ports.AnalysisHandoff, now time.Time, ttl time.Duration) (*sessionRow, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.Validation("session ID is required")
	}
	if handoff == nil || handoff.Data == nil {
		return nil, errors.Validation("analysis data is required")
	}

	payload, err := json.Marshal(handoff.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode analysis data")
	}

	created := handoff.CreatedAt
	if created.IsZero() {
		created = now
	}
	return &sessionRow{
		SessionID: sessionID,
		FileName:  handoff.FileName,
		Payload:   payload,
		CreatedAt: created,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// decodeSession treats a corrupt payload like a missing one
func decodeSession(row sessionRow) (*ports.AnalysisHandoff, error) {
	var data prediction.AnalysisData
	if err := json.Unmarshal(row.Payload, &data); err != nil {
		return nil, errors.WithCode(errors.CodeNoAnalysis, errors.Wrap(err, "stored analysis is corrupt"))
	}
	if data.Results == nil {
		data.Results = []prediction.PredictionResult{}
	}
	return &ports.AnalysisHandoff{
		Data:      &data,
		FileName:  row.FileName,
		CreatedAt: row.CreatedAt,
	}, nil
}
