package analysis

import (
	"strconv"
	"strings"

	"exoai/domain/prediction"
)

// Filter selects which predictions the table shows
type Filter string

const (
	FilterAll           Filter = "all"
	FilterConfirmed     Filter = Filter(prediction.Confirmed)
	FilterCandidate     Filter = Filter(prediction.Candidate)
	FilterFalsePositive Filter = Filter(prediction.FalsePositive)
)

// Filters lists the tabs in display order
var Filters = []Filter{FilterAll, FilterCandidate, FilterConfirmed, FilterFalsePositive}

// ParseFilter maps a query value onto a Filter; anything unrecognized means all
func ParseFilter(s string) Filter {
	if strings.EqualFold(strings.TrimSpace(s), string(FilterAll)) {
		return FilterAll
	}
	class, err := prediction.ParseClass(s)
	if err != nil {
		return FilterAll
	}
	return Filter(class)
}

// Label returns the tab label
func (f Filter) Label() string {
	if f == FilterAll {
		return "All"
	}
	return prediction.Class(f).Label()
}

// RowsPerPageOptions are the selectable page sizes
var RowsPerPageOptions = []int{10, 25, 50}

// DefaultRowsPerPage is used when no valid page size is given
const DefaultRowsPerPage = 10

// NormalizeRowsPerPage falls back to DefaultRowsPerPage for unsupported sizes
func NormalizeRowsPerPage(n int) int {
	for _, opt := range RowsPerPageOptions {
		if n == opt {
			return n
		}
	}
	return DefaultRowsPerPage
}

// ViewState is the user-controlled input of the analysis table
type ViewState struct {
	Filter      Filter
	Query       string
	RowsPerPage int
	Page        int
}

// NewViewState returns the initial state: all rows, no search, first page of 10
func NewViewState() ViewState {
	return ViewState{
		Filter:      FilterAll,
		RowsPerPage: DefaultRowsPerPage,
		Page:        1,
	}
}

// ViewStateFromQuery builds a state from raw query parameters, tolerating junk
func ViewStateFromQuery(filter, query, rows, page string) ViewState {
	state := NewViewState()
	state.Filter = ParseFilter(filter)
	state.Query = strings.TrimSpace(query)
	if n, err := strconv.Atoi(rows); err == nil {
		state.RowsPerPage = NormalizeRowsPerPage(n)
	}
	if p, err := strconv.Atoi(page); err == nil && p > 0 {
		state.Page = p
	}
	return state
}

// SetFilter changes the active tab and returns to the first page
func (s *ViewState) SetFilter(f Filter) {
	s.Filter = f
	s.Page = 1
}

// SetQuery changes the search text and returns to the first page
func (s *ViewState) SetQuery(q string) {
	s.Query = q
	s.Page = 1
}

// SetRowsPerPage changes the page size. The page always resets to 1.
func (s *ViewState) SetRowsPerPage(n int) {
	s.RowsPerPage = NormalizeRowsPerPage(n)
	s.Page = 1
}

// Prev moves one page back; a no-op on the first page
func (s *ViewState) Prev() {
	if s.Page > 1 {
		s.Page--
	}
}

// Next moves one page forward; a no-op on the last page
func (s *ViewState) Next(totalPages int) {
	if s.Page < totalPages {
		s.Page++
	}
}

// View is one rendered page of the analysis table
type View struct {
	Rows        []prediction.PredictionResult
	Filter      Filter
	Query       string
	RowsPerPage int
	Page        int
	TotalPages  int
	// Matched counts rows after filter and search, Total counts every result.
	Matched int
	Total   int
}

func (v View) HasPrev() bool { return v.Page > 1 }
func (v View) HasNext() bool { return v.Page < v.TotalPages }

// PrevPage returns the page "previous" leads to, clamped at 1
func (v View) PrevPage() int {
	if v.HasPrev() {
		return v.Page - 1
	}
	return v.Page
}

// NextPage returns the page "next" leads to, clamped at the last page
func (v View) NextPage() int {
	if v.HasNext() {
		return v.Page + 1
	}
	return v.Page
}

// State returns the ViewState that reproduces this view
func (v View) State() ViewState {
	return ViewState{Filter: v.Filter, Query: v.Query, RowsPerPage: v.RowsPerPage, Page: v.Page}
}
