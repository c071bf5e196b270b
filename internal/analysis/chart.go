package analysis

import (
	"math"
	"sort"

	"exoai/domain/prediction"
)

// ChartShare is one slice of the statistics pie chart
type ChartShare struct {
	Class      prediction.Class
	Label      string
	Count      int
	Percentage int
	Color      string
}

var chartColors = map[prediction.Class]string{
	prediction.Confirmed:     "#22c55e",
	prediction.Candidate:     "#f97316",
	prediction.FalsePositive: "#ef4444",
}

// ChartShares converts the summary counts into rounded percentages of total.
// Every share is 0 when total is 0.
func ChartShares(summary prediction.AnalysisSummary) []ChartShare {
	shares := make([]ChartShare, 0, len(prediction.Classes))
	for _, class := range prediction.Classes {
		count := summary.Count(class)
		pct := 0
		if summary.Total > 0 {
			pct = int(math.Round(float64(count) / float64(summary.Total) * 100))
		}
		shares = append(shares, ChartShare{
			Class:      class,
			Label:      class.Label(),
			Count:      count,
			Percentage: pct,
			Color:      chartColors[class],
		})
	}
	return shares
}

// ColumnScore is one entry of the column importance ranking
type ColumnScore struct {
	Name  string
	Score float64
}

// RankedColumns orders the summary's column importance by descending score,
// breaking ties by name
func RankedColumns(summary prediction.AnalysisSummary, n int) []ColumnScore {
	ranked := make([]ColumnScore, 0, len(summary.ColumnImportance))
	for name, score := range summary.ColumnImportance {
		ranked = append(ranked, ColumnScore{Name: name, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Name < ranked[j].Name
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
