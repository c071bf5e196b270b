package analysis

import (
	"strings"
	"sync"

	"exoai/domain/prediction"
)

// ApplyFilter keeps the results whose prediction matches f, or all of them for FilterAll.
// The input slice is never modified.
func ApplyFilter(results []prediction.PredictionResult, f Filter) []prediction.PredictionResult {
	if f == FilterAll || f == "" {
		return results
	}
	out := make([]prediction.PredictionResult, 0, len(results))
	for _, r := range results {
		if Filter(r.Prediction) == f {
			out = append(out, r)
		}
	}
	return out
}

// ApplySearch keeps the results whose ID contains query, ignoring case.
// An empty query returns the input unchanged.
func ApplySearch(results []prediction.PredictionResult, query string) []prediction.PredictionResult {
	if query == "" {
		return results
	}
	needle := strings.ToLower(query)
	out := make([]prediction.PredictionResult, 0, len(results))
	for _, r := range results {
		if strings.Contains(strings.ToLower(r.ID), needle) {
			out = append(out, r)
		}
	}
	return out
}

// TotalPages is ceil(n/size), reported as 1 for an empty sequence
func TotalPages(n, size int) int {
	if size <= 0 {
		size = DefaultRowsPerPage
	}
	if n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// Paginate returns the rows of the requested 1-based page together with the
// clamped page number and the page count.
func Paginate(results []prediction.PredictionResult, size, page int) ([]prediction.PredictionResult, int, int) {
	size = NormalizeRowsPerPage(size)
	total := TotalPages(len(results), size)
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	start := (page - 1) * size
	end := start + size
	if start > len(results) {
		start = len(results)
	}
	if end > len(results) {
		end = len(results)
	}
	return results[start:end], page, total
}

// Project runs filter, search and pagination over data without memoization
func Project(data *prediction.AnalysisData, state ViewState) View {
	matched := matchResults(data, state.Filter, state.Query)
	return paginateView(data, matched, state)
}

func matchResults(data *prediction.AnalysisData, f Filter, query string) []prediction.PredictionResult {
	if data == nil {
		return nil
	}
	return ApplySearch(ApplyFilter(data.Results, f), query)
}

func paginateView(data *prediction.AnalysisData, matched []prediction.PredictionResult, state ViewState) View {
	rows, page, totalPages := Paginate(matched, state.RowsPerPage, state.Page)
	total := 0
	if data != nil {
		total = len(data.Results)
	}
	return View{
		Rows:        rows,
		Filter:      state.Filter,
		Query:       state.Query,
		RowsPerPage: NormalizeRowsPerPage(state.RowsPerPage),
		Page:        page,
		TotalPages:  totalPages,
		Matched:     len(matched),
		Total:       total,
	}
}

type matchKey struct {
	data   *prediction.AnalysisData
	filter Filter
	query  string
}

type viewKey struct {
	match matchKey
	rows  int
	page  int
}

// Projector memoizes the last filter/search result and the last view, keyed by
// the data pointer and the view inputs. Safe for concurrent use.
type Projector struct {
	mu       sync.Mutex
	lastKey  *matchKey
	matched  []prediction.PredictionResult
	lastView *viewKey
	view     View
	misses   int
}

// NewProjector creates an empty projector
func NewProjector() *Projector {
	return &Projector{}
}

// Project returns the view for state, recomputing only the stages whose inputs changed
func (p *Projector) Project(data *prediction.AnalysisData, state ViewState) View {
	p.mu.Lock()
	defer p.mu.Unlock()

	mk := matchKey{data: data, filter: state.Filter, query: state.Query}
	vk := viewKey{match: mk, rows: state.RowsPerPage, page: state.Page}
	if p.lastView != nil && *p.lastView == vk {
		return p.view
	}

	if p.lastKey == nil || *p.lastKey != mk {
		p.matched = matchResults(data, state.Filter, state.Query)
		p.lastKey = &mk
		p.misses++
	}

	p.view = paginateView(data, p.matched, state)
	p.lastView = &vk
	return p.view
}

// Recomputations reports how many times the filter/search stage actually ran
func (p *Projector) Recomputations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.misses
}
