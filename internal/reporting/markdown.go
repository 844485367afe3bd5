package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Curve Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Runs: %d | Series: %d | Failed: %d\n\n", r.RunCount, r.SeriesCount, r.FailedCount))

	sb.WriteString("## Curve Comparison\n\n")
	if len(r.KindComparison) == 0 {
		sb.WriteString("No completed runs.\n\n")
	} else {
		sb.WriteString("| Curve | Runs | Mean Fee Income | Mean Max Drawdown | Best Run | Best Fee Income |\n")
		sb.WriteString("|-------|------|-----------------|-------------------|----------|-----------------|\n")
		for _, k := range r.KindComparison {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s |\n",
				k.CurveKind, k.Runs, pct(k.MeanFeeIncome), pct(k.MeanMaxDrawdown),
				shortID(k.BestRunID), pct(k.BestFeeIncome)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Series | Curve | Driver | Fee Rate | Steps | Fee Income | Max Drawdown | Final Price | Run |\n")
		sb.WriteString("|--------|-------|--------|----------|-------|------------|--------------|-------------|-----|\n")
		for _, run := range r.Runs {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %s | %s | %.6f | %s |\n",
				run.SeriesID, run.CurveKind, run.Driver, pct(run.FeeRate), run.StepCount,
				pct(run.FeeIncome), pct(run.MaxDrawdown), run.FinalPrice, shortID(run.RunID)))
		}
		sb.WriteString("\n")
	}

	if len(r.Failures) > 0 {
		sb.WriteString("## Failures\n\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("- `%s` %s on %s: %s\n", shortID(f.RunID), f.CurveKind, f.SeriesID, f.Error))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func pct(v float64) string {
	return fmt.Sprintf("%.4f%%", v*100)
}

// shortID keeps the first 12 characters of a run id.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
