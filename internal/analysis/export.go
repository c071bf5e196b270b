package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"exoai/domain/prediction"

	"github.com/xuri/excelize/v2"
)

// CSVContentType is the MIME type of the CSV download
const CSVContentType = "text/csv;charset=utf-8"

// XLSXContentType is the MIME type of the workbook download
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHeader is the fixed header row of every export
var ExportHeader = []string{
	"ID",
	"Status",
	"Confidence",
	"Candidate Probability",
	"Confirmed Probability",
	"False Positive Probability",
}

const exportSheet = "Analysis"

func formatPercent(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}

// ExportRow formats one result the way both export formats write it
func ExportRow(r prediction.PredictionResult) []string {
	return []string{
		r.ID,
		r.Prediction.String(),
		fmt.Sprintf("%.1f", r.Confidence),
		formatPercent(r.Probability.Candidate),
		formatPercent(r.Probability.Confirmed),
		formatPercent(r.Probability.FalsePositive),
	}
}

// ExportCSV writes every result of data, ignoring any active filter or search
func ExportCSV(w io.Writer, data *prediction.AnalysisData) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if data != nil {
		for _, r := range data.Results {
			if err := cw.Write(ExportRow(r)); err != nil {
				return fmt.Errorf("failed to write CSV row %s: %w", r.ID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportXLSX writes the same rows as ExportCSV into the "Analysis" sheet of a workbook
func ExportXLSX(w io.Writer, data *prediction.AnalysisData) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	writeRow := func(rowNum int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(exportSheet, cell, &row)
	}

	if err := writeRow(1, ExportHeader); err != nil {
		return fmt.Errorf("failed to write XLSX header: %w", err)
	}
	if data != nil {
		for i, r := range data.Results {
			if err := writeRow(i+2, ExportRow(r)); err != nil {
				return fmt.Errorf("failed to write XLSX row %s: %w", r.ID, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write XLSX workbook: %w", err)
	}
	return nil
}

func exportBaseName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "analysis"
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return "analysis"
	}
	return stem
}

// ExportFileName derives the CSV download name: "koi.csv" becomes "koi_analysis.csv"
func ExportFileName(original string) string {
	return exportBaseName(original) + "_analysis.csv"
}

// ExportXLSXFileName derives the workbook download name: "koi.csv" becomes "koi_analysis.xlsx"
func ExportXLSXFileName(original string) string {
	return exportBaseName(original) + "_analysis.xlsx"
}
