package ui

import (
	"html/template"
	"net/url"
	"strconv"

	"exoai/domain/prediction"
	"exoai/internal/analysis"
	"exoai/internal/metricsview"
	"exoai/internal/upload"
)

// Page names used for navigation highlighting and page view metrics
const (
	pageUpload   = "upload"
	pageAnalysis = "analysis"
	pageMetrics  = "metrics"
)

const noticeNoAnalysis = "no-analysis"

// basePage carries what the shared header and footer need
type basePage struct {
	Title  string
	Active string
}

type uploadPage struct {
	basePage
	Models        []upload.ModelOption
	SelectedModel string
	FileName      string
	Error         string
	Notice        string
	Notes         template.HTML
	MaxMB         int64
}

type tabLink struct {
	Label  string
	Href   string
	Count  int
	Active bool
}

type rowsLink struct {
	N      int
	Href   string
	Active bool
}

type analysisPage struct {
	basePage
	FileName   string
	Summary    prediction.AnalysisSummary
	Chart      []analysis.ChartShare
	Confidence analysis.ConfidenceSummary
	Intervals  []analysis.ShareInterval
	TopColumns []analysis.ColumnScore
	View       analysis.View
	Tabs       []tabLink
	RowsLinks  []rowsLink
	PrevHref   string
	NextHref   string
	CSVHref    string
	XLSXHref   string
}

type metricsPage struct {
	basePage
	Cards []metricsview.ModelCard
	Error string
	Notes template.HTML
}

type errorPage struct {
	basePage
	Message string
}

// viewURL encodes a view state as an /analysis link. Defaults are omitted.
func viewURL(state analysis.ViewState) string {
	q := url.Values{}
	if state.Filter != "" && state.Filter != analysis.FilterAll {
		q.Set("filter", string(state.Filter))
	}
	if state.Query != "" {
		q.Set("q", state.Query)
	}
	if state.RowsPerPage != 0 && state.RowsPerPage != analysis.DefaultRowsPerPage {
		q.Set("rows", strconv.Itoa(state.RowsPerPage))
	}
	if state.Page > 1 {
		q.Set("page", strconv.Itoa(state.Page))
	}
	if len(q) == 0 {
		return "/analysis"
	}
	return "/analysis?" + q.Encode()
}

// buildAnalysisPage derives every link on the page from the current view
func buildAnalysisPage(ctrl *analysis.Controller, view analysis.View, confidence analysis.ConfidenceSummary) analysisPage {
	summary := ctrl.Data().Summary
	state := view.State()

	tabs := make([]tabLink, 0, len(analysis.Filters))
	for _, f := range analysis.Filters {
		next := state
		next.SetFilter(f)
		count := summary.Total
		if f != analysis.FilterAll {
			count = summary.Count(prediction.Class(f))
		}
		tabs = append(tabs, tabLink{Label: f.Label(), Href: viewURL(next), Count: count, Active: f == view.Filter})
	}

	rows := make([]rowsLink, 0, len(analysis.RowsPerPageOptions))
	for _, n := range analysis.RowsPerPageOptions {
		next := state
		next.SetRowsPerPage(n)
		rows = append(rows, rowsLink{N: n, Href: viewURL(next), Active: n == view.RowsPerPage})
	}

	prev, next := state, state
	prev.Prev()
	next.Next(view.TotalPages)

	return analysisPage{
		basePage:   basePage{Title: "Analysis", Active: pageAnalysis},
		FileName:   ctrl.FileName(),
		Summary:    summary,
		Chart:      ctrl.Chart(),
		Confidence: confidence,
		Intervals:  ctrl.Intervals(),
		TopColumns: analysis.RankedColumns(summary, 8),
		View:       view,
		Tabs:       tabs,
		RowsLinks:  rows,
		PrevHref:   viewURL(prev),
		NextHref:   viewURL(next),
		CSVHref:    "/analysis/export.csv",
		XLSXHref:   "/analysis/export.xlsx",
	}
}
