package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"exoai/adapters/exoplanet"
	"exoai/domain/prediction"
	"exoai/internal/analysis"
	"exoai/internal/metricsview"
	"exoai/internal/upload"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	confirmedText = color.New(color.FgGreen).SprintFunc()
	candidateText = color.New(color.FgYellow).SprintFunc()
	rejectedText  = color.New(color.FgRed).SprintFunc()
	headingText   = color.New(color.Bold).SprintFunc()
)

func main() {
	_ = godotenv.Load()

	var serviceURL string
	var timeout time.Duration

	rootCmd := &cobra.Command{
		Use:   "exoai-cli",
		Short: "ExoAI CLI for running classifications against the prediction service",
	}
	rootCmd.PersistentFlags().StringVar(&serviceURL, "url", envOr("EXOPLANET_API_URL", "http://localhost:8000"), "Prediction service base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", exoplanet.DefaultTimeout, "Request timeout")

	newClient := func() (*exoplanet.Client, error) {
		return exoplanet.NewClient(exoplanet.Config{BaseURL: serviceURL, Timeout: timeout, UserAgent: "exoai-cli"})
	}

	rootCmd.AddCommand(
		newPredictCmd(newClient),
		newMetricsCmd(newClient),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type clientFactory func() (*exoplanet.Client, error)

func newPredictCmd(newClient clientFactory) *cobra.Command {
	var model string
	var out string
	var top int

	cmd := &cobra.Command{
		Use:   "predict [file.csv]",
		Short: "Classify every row of a CSV file",
		Long: `Upload a CSV of transit candidates and print the classification summary.

Example: exoai-cli predict koi.csv --model k2 --out koi_analysis.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID, err := upload.ParseModel(model)
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			return runPredict(cmd.Context(), cmd.OutOrStdout(), client, modelID, args[0], out, top)
		},
	}

	cmd.Flags().StringVar(&model, "model", upload.Models[0].ID, "Model to use: kepler or k2")
	cmd.Flags().StringVar(&out, "out", "", "Write the full results to this .csv or .xlsx file")
	cmd.Flags().IntVar(&top, "top", 10, "Number of highest-confidence rows to print")

	return cmd
}

func runPredict(ctx context.Context, w io.Writer, client *exoplanet.Client, model, path, out string, top int) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > upload.MaxFileSize {
		return upload.TooLargeError()
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := client.Predict(ctx, model, filepath.Base(path), f)
	if err != nil {
		return err
	}

	printSummary(w, filepath.Base(path), data, top)

	if out != "" {
		if err := writeExport(out, data); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nWrote %d rows to %s\n", len(data.Results), out)
	}
	return nil
}

func writeExport(path string, data *prediction.AnalysisData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return exportTo(f, strings.EqualFold(filepath.Ext(path), ".xlsx"), data)
}

// exportTo writes data and closes w, reporting the close error when the write succeeded
func exportTo(w io.WriteCloser, xlsx bool, data *prediction.AnalysisData) (err error) {
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	if xlsx {
		return analysis.ExportXLSX(w, data)
	}
	return analysis.ExportCSV(w, data)
}

func classText(c prediction.Class) string {
	switch c {
	case prediction.Confirmed:
		return confirmedText(c.Label())
	case prediction.Candidate:
		return candidateText(c.Label())
	default:
		return rejectedText(c.Label())
	}
}

func printSummary(w io.Writer, fileName string, data *prediction.AnalysisData, top int) {
	fmt.Fprintf(w, "%s %s\n\n", headingText("Analysis of"), fileName)
	for _, share := range analysis.ChartShares(data.Summary) {
		fmt.Fprintf(w, "  %-16s %6d  (%d%%)\n", classText(share.Class), share.Count, share.Percentage)
	}
	fmt.Fprintf(w, "  %-16s %6d\n", "Total", data.Summary.Total)
	fmt.Fprintf(w, "  %-16s %6d\n", "High confidence", data.Summary.HighConfidence)

	if conf, err := analysis.SummarizeConfidence(data.Results); err == nil && conf.Count > 0 {
		fmt.Fprintf(w, "\n%s mean %.1f, median %.1f, p90 %.1f\n", headingText("Confidence:"), conf.Mean, conf.Median, conf.P90)
	}

	rows := topByConfidence(data.Results, top)
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", headingText("Most confident predictions"))
	for _, r := range rows {
		row := analysis.ExportRow(r)
		fmt.Fprintf(w, "  %-14s %-16s %5s  candidate %s  confirmed %s  false positive %s\n",
			r.ID, classText(r.Prediction), row[2], row[3], row[4], row[5])
	}
}

// topByConfidence returns up to n results with the highest confidence, stable on input order
func topByConfidence(results []prediction.PredictionResult, n int) []prediction.PredictionResult {
	if n <= 0 || len(results) == 0 {
		return nil
	}
	sorted := make([]prediction.PredictionResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func newMetricsCmd(newClient clientFactory) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show accuracy and feature importance of the trained models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctrl := metricsview.NewController(client)
			if err := ctrl.Load(cmd.Context()); err != nil {
				return err
			}
			printMetrics(cmd.OutOrStdout(), ctrl.Cards(top))
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", prediction.DefaultTopFeatures, "Number of top features per model")
	return cmd
}

func printMetrics(w io.Writer, cards []metricsview.ModelCard) {
	if len(cards) == 0 {
		fmt.Fprintln(w, "No trained models reported")
		return
	}
	for i, card := range cards {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", headingText(card.Display.Name), card.Metrics.ModelName)
		fmt.Fprintf(w, "  Accuracy:     %.2f%%\n", card.Accuracy)
		fmt.Fprintf(w, "  Features:     %d\n", card.FeatureCount)
		fmt.Fprintf(w, "  Last trained: %s\n", card.LastTrained)
		for rank, f := range card.TopFeatures {
			fmt.Fprintf(w, "  %d. %-24s %.4f\n", rank+1, f.Name, f.Score)
		}
	}
}
