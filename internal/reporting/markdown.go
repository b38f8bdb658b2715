package reporting

import (
	"fmt"
	"strings"
	"time"

	"etf-chunk-lab/internal/selection"
	"etf-chunk-lab/internal/stochastic"
)

// RenderComparisonMarkdown renders report as Markdown string.
func RenderComparisonMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Strategy Comparison Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	if len(r.Results) > 0 {
		cfg := r.Results[0].Config
		sb.WriteString("## Configuration\n\n")
		sb.WriteString("| Parameter | Value |\n")
		sb.WriteString("|-----------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Start Capital | %.2f |\n", cfg.StartCapital))
		sb.WriteString(fmt.Sprintf("| Chunks | %d |\n", cfg.NumberOfChunks))
		sb.WriteString(fmt.Sprintf("| Profit Target | %.2f%% |\n", cfg.ProfitTargetPct))
		sb.WriteString(fmt.Sprintf("| Trading Days | %d |\n", cfg.TotalTradingDays))
		sb.WriteString(fmt.Sprintf("| Moving Average Window | %d |\n", cfg.MovingAverageWindow))
		sb.WriteString(fmt.Sprintf("| Symbols | %d |\n", len(r.Results[0].Symbols)))
		sb.WriteString("\n")
	}

	// Runs
	sb.WriteString("## Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Run | Variant | Days | Final Capital | P/L | Return % | CAGR % | Max DD % | Buys | Sells | Win Rate | Avg Hold |\n")
		sb.WriteString("|-----|---------|------|---------------|-----|----------|--------|----------|------|-------|----------|----------|\n")
		for _, run := range r.Runs {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.2f | %.2f | %.2f | %.2f | %.2f | %d | %d | %.2f | %.1f |\n",
				run.RunID, run.Variant, run.DaysSimulated,
				run.FinalCapital, run.ProfitLoss, run.TotalReturnPct, run.CAGRPct, run.MaxDrawdownPct,
				run.Buys, run.Sells, run.WinRate, run.AvgHoldingDays))
		}
	} else {
		sb.WriteString("No runs available.\n")
	}
	sb.WriteString("\n")

	// Verdict
	sb.WriteString("## Verdict\n\n")
	switch {
	case r.Comparison == nil:
		sb.WriteString("No head-to-head comparison available.\n")
	case r.Comparison.Winner == "":
		sb.WriteString("**Tie.** Both variants finished with the same capital.\n")
	default:
		sb.WriteString(fmt.Sprintf("**%s** wins by %.2f (return spread %.2f pp, global minus chunk).\n",
			r.Comparison.Winner, abs(r.Comparison.FinalCapitalGap), r.Comparison.ReturnSpreadPct))
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderRankingMarkdown renders the moving-average ranking of one day.
func RenderRankingMarkdown(day int, date time.Time, ranked []selection.Candidate) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# ETF Ranking: day %d (%s)\n\n", day, dateString(date)))
	if len(ranked) == 0 {
		sb.WriteString("No ETF has a close and a defined moving average on this day.\n")
		return sb.String()
	}

	sb.WriteString("| Rank | Symbol | Close | Moving Average | Distance % |\n")
	sb.WriteString("|------|--------|-------|----------------|------------|\n")
	for i, c := range ranked {
		sb.WriteString(fmt.Sprintf("| %d | %s | %.2f | %.2f | %.2f |\n",
			i+1, c.Symbol, c.Close, c.MovingAverage, c.Score))
	}
	sb.WriteString("\n")
	return sb.String()
}

// RenderStochasticMarkdown renders a stochastic run with its baseline.
func RenderStochasticMarkdown(r *stochastic.Result) string {
	var sb strings.Builder
	s := r.Summary

	sb.WriteString("# Chunk Simulation Report\n\n")
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s (seed %d)\n\n", r.RunID, r.Config.Seed))
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Chunks | Simple Compounding |\n")
	sb.WriteString("|--------|--------|--------------------|\n")
	sb.WriteString(fmt.Sprintf("| Final Capital | %.2f | %.2f |\n", s.FinalCapital, r.Baseline.FinalCapital))
	sb.WriteString(fmt.Sprintf("| Total Profit | %.2f | %.2f |\n", s.TotalProfit, r.Baseline.TotalProfit))
	sb.WriteString(fmt.Sprintf("| ROI %% | %.2f | %.2f |\n", s.ROIPct, r.Baseline.ROIPct))
	sb.WriteString(fmt.Sprintf("| Trades | %d | %d |\n", s.CompletedTrades, r.Baseline.Trades))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("- Deployments: %d\n", s.TotalDeployments))
	sb.WriteString(fmt.Sprintf("- Actual win rate: %.1f%%\n", s.ActualWinRatePct))
	sb.WriteString(fmt.Sprintf("- Average holding period: %.0f days\n", s.AvgHoldingDays))
	sb.WriteString(fmt.Sprintf("- Capital utilization: %.0f%%\n", s.CapitalUtilizationPct))
	sb.WriteString(fmt.Sprintf("- Best chunk: #%d, worst chunk: #%d\n\n", s.BestChunk, s.WorstChunk))

	sb.WriteString("## Chunks\n\n")
	sb.WriteString("| Chunk | Initial | Final | Trades | Wins | Losses | ROI % |\n")
	sb.WriteString("|-------|---------|-------|--------|------|--------|-------|\n")
	for _, c := range r.Chunks {
		sb.WriteString(fmt.Sprintf("| %d | %.2f | %.2f | %d | %d | %d | %.2f |\n",
			c.ChunkID, c.InitialCapital, c.FinalCapital, c.Trades, c.Wins, c.Losses, c.ROIPct))
	}
	sb.WriteString("\n")

	return sb.String()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
