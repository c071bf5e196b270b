package prediction

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Class is one of the three mutually exclusive classification labels
type Class string

const (
	Candidate     Class = "candidate"
	Confirmed     Class = "confirmed"
	FalsePositive Class = "false_positive"
)

// Classes lists the labels in the order the dashboard presents them
var Classes = []Class{Confirmed, Candidate, FalsePositive}

// ProbabilityOrder maps each position of the service's probability triple to its class.
var ProbabilityOrder = [3]Class{Candidate, Confirmed, FalsePositive}

// ParseClass normalizes a wire label. "false positive" and "false_positive" are the same class.
func ParseClass(s string) (Class, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch Class(normalized) {
	case Candidate, Confirmed, FalsePositive:
		return Class(normalized), nil
	}
	return "", fmt.Errorf("unknown prediction label %q", s)
}

// Label returns the human readable label
func (c Class) Label() string {
	switch c {
	case Confirmed:
		return "Confirmed"
	case Candidate:
		return "Candidate"
	case FalsePositive:
		return "False Positive"
	default:
		return string(c)
	}
}

func (c Class) String() string {
	return string(c)
}

// UnmarshalJSON accepts any spelling ParseClass understands
func (c *Class) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("prediction label must be a string: %w", err)
	}
	parsed, err := ParseClass(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Probabilities holds the per-class probabilities of a single row
type Probabilities struct {
	Candidate     float64
	Confirmed     float64
	FalsePositive float64
}

// Of returns the probability assigned to c
func (p Probabilities) Of(c Class) float64 {
	switch c {
	case Candidate:
		return p.Candidate
	case Confirmed:
		return p.Confirmed
	case FalsePositive:
		return p.FalsePositive
	}
	return 0
}

func (p *Probabilities) set(c Class, v float64) {
	switch c {
	case Candidate:
		p.Candidate = v
	case Confirmed:
		p.Confirmed = v
	case FalsePositive:
		p.FalsePositive = v
	}
}

// Triple returns the probabilities in ProbabilityOrder
func (p Probabilities) Triple() []float64 {
	out := make([]float64, len(ProbabilityOrder))
	for i, c := range ProbabilityOrder {
		out[i] = p.Of(c)
	}
	return out
}

// Sum returns the total probability mass, which should be close to 1
func (p Probabilities) Sum() float64 {
	return floats.Sum(p.Triple())
}

// UnmarshalJSON decodes the positional triple through ProbabilityOrder
func (p *Probabilities) UnmarshalJSON(data []byte) error {
	var triple []float64
	if err := json.Unmarshal(data, &triple); err != nil {
		return fmt.Errorf("probability must be an array of numbers: %w", err)
	}
	if len(triple) != len(ProbabilityOrder) {
		return fmt.Errorf("probability must have %d values, got %d", len(ProbabilityOrder), len(triple))
	}
	// values are kept as sent; range and sum are reported by the analysis stats
	var decoded Probabilities
	for i, v := range triple {
		decoded.set(ProbabilityOrder[i], v)
	}
	*p = decoded
	return nil
}

// MarshalJSON writes the triple back in ProbabilityOrder
func (p Probabilities) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Triple())
}

// PredictionResult is one classified observation row
type PredictionResult struct {
	ID          string        `json:"id"`
	Prediction  Class         `json:"prediction"`
	Probability Probabilities `json:"probability"`
	Confidence  float64       `json:"confidence"`
}

// AnalysisSummary holds aggregate counts computed by the prediction service
type AnalysisSummary struct {
	Total            int                `json:"total"`
	Confirmed        int                `json:"confirmed"`
	Candidate        int                `json:"candidate"`
	FalsePositive    int                `json:"false_positive"`
	HighConfidence   int                `json:"high_confidence"`
	ColumnImportance map[string]float64 `json:"column_importance"`
}

// Count returns the summary count for c
func (s AnalysisSummary) Count(c Class) int {
	switch c {
	case Confirmed:
		return s.Confirmed
	case Candidate:
		return s.Candidate
	case FalsePositive:
		return s.FalsePositive
	}
	return 0
}

// AnalysisData is the full prediction payload for one upload.
// Results must be treated as read-only once decoded.
type AnalysisData struct {
	Summary AnalysisSummary    `json:"summary"`
	Results []PredictionResult `json:"results"`
}

// DecodeAnalysisData parses a prediction service response
func DecodeAnalysisData(r io.Reader) (*AnalysisData, error) {
	var data AnalysisData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode analysis data: %w", err)
	}
	if data.Results == nil {
		data.Results = []PredictionResult{}
	}
	return &data, nil
}
