package analysis

import (
	"math"

	"exoai/domain/prediction"

	"github.com/montanaflynn/stats"
	gonumstat "gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// probabilityTolerance is how far a probability, or a triple's sum, may drift outside its bounds
const probabilityTolerance = 0.01

// ConfidenceSummary describes the confidence distribution of a result set
type ConfidenceSummary struct {
	Count  int
	Mean   float64
	Median float64
	P90    float64
	Min    float64
	Max    float64
	StdDev float64
	// UnnormalizedRows counts results whose probabilities do not sum to 1
	// or hold a value outside [0,1].
	UnnormalizedRows int
}

// SummarizeConfidence computes the sidebar statistics over every result.
// An empty input yields a zero summary.
func SummarizeConfidence(results []prediction.PredictionResult) (ConfidenceSummary, error) {
	summary := ConfidenceSummary{Count: len(results)}
	if len(results) == 0 {
		return summary, nil
	}

	data := make(stats.Float64Data, 0, len(results))
	for _, r := range results {
		data = append(data, r.Confidence)
		if !isDistribution(r.Probability) {
			summary.UnnormalizedRows++
		}
	}

	var err error
	if summary.Mean, err = data.Mean(); err != nil {
		return summary, err
	}
	if summary.Median, err = data.Median(); err != nil {
		return summary, err
	}
	if summary.P90, err = data.Percentile(90); err != nil {
		return summary, err
	}
	if summary.Min, err = data.Min(); err != nil {
		return summary, err
	}
	if summary.Max, err = data.Max(); err != nil {
		return summary, err
	}
	// sample deviation is undefined for a single value
	if len(data) > 1 {
		summary.StdDev = gonumstat.StdDev(data, nil)
	}
	return summary, nil
}

func isDistribution(p prediction.Probabilities) bool {
	for _, v := range p.Triple() {
		if v < -probabilityTolerance || v > 1+probabilityTolerance {
			return false
		}
	}
	return math.Abs(p.Sum()-1) <= probabilityTolerance
}

// DefaultIntervalLevel is the coverage of the class share intervals
const DefaultIntervalLevel = 0.95

// ShareInterval is a Wilson score interval around one class's share of the results
type ShareInterval struct {
	Class prediction.Class
	Share float64
	Lower float64
	Upper float64
}

// ShareIntervals estimates how precisely each class share is known given the
// number of classified rows. All bounds are 0 when total is 0.
func ShareIntervals(summary prediction.AnalysisSummary, level float64) []ShareInterval {
	if level <= 0 || level >= 1 {
		level = DefaultIntervalLevel
	}
	z := distuv.UnitNormal.Quantile(1 - (1-level)/2)

	out := make([]ShareInterval, 0, len(prediction.Classes))
	for _, class := range prediction.Classes {
		iv := ShareInterval{Class: class}
		if summary.Total > 0 {
			n := float64(summary.Total)
			p := math.Min(1, math.Max(0, float64(summary.Count(class))/n))
			denom := 1 + z*z/n
			center := (p + z*z/(2*n)) / denom
			half := z * math.Sqrt(p*(1-p)/n+z*z/(4*n*n)) / denom
			iv.Share = p
			iv.Lower = math.Max(0, center-half)
			iv.Upper = math.Min(1, center+half)
		}
		out = append(out, iv)
	}
	return out
}
