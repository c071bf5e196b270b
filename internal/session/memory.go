// Package session keeps the analysis handoff between the upload and
// analysis pages, keyed by the browser's session cookie.
package session

import (
	"context"
	"strings"
	"time"

	"exoai/internal/errors"
	"exoai/ports"

	"github.com/patrickmn/go-cache"
)

// DefaultTTL is how long an analysis survives without being replaced
const DefaultTTL = 2 * time.Hour

// MemoryStore is an in-process SessionRepository with per-entry expiry.
// Safe for concurrent use.
type MemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

var _ ports.SessionRepository = (*MemoryStore)(nil)

// NewMemoryStore creates a store whose entries expire after ttl
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// Save stores a copy of handoff; the latest analysis for a session wins
func (s *MemoryStore) Save(ctx context.Context, sessionID string, handoff *ports.AnalysisHandoff) error {
	if err := validate(sessionID, handoff); err != nil {
		return err
	}
	stored := *handoff
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.cache.Set(sessionID, &stored, cache.DefaultExpiration)
	return nil
}

// Load returns the handoff for sessionID or ports.ErrNoAnalysis
func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*ports.AnalysisHandoff, error) {
	cached, found := s.cache.Get(sessionID)
	if !found {
		return nil, ports.ErrNoAnalysis
	}
	handoff, ok := cached.(*ports.AnalysisHandoff)
	if !ok || handoff.Data == nil {
		return nil, ports.ErrNoAnalysis
	}
	out := *handoff
	return &out, nil
}

// Delete drops the session's analysis
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.cache.Delete(sessionID)
	return nil
}

// Len reports the number of live sessions
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}

// TTL returns the configured expiry
func (s *MemoryStore) TTL() time.Duration {
	return s.ttl
}

func validate(sessionID string, handoff *ports.AnalysisHandoff) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.Validation("session ID is required")
	}
	if handoff == nil || handoff.Data == nil {
		return errors.Validation("analysis data is required")
	}
	return nil
}
