package metrics

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"etf-chunk-lab/internal/domain"
)

// TradeStatistics summarises a trade log. Only sells carry an outcome;
// a sell with positive profit is a win. Trades must be in log order.
func TradeStatistics(trades []domain.TradeRecord) domain.TradeStats {
	var (
		stats       domain.TradeStats
		profitPcts  []float64
		holdingDays []float64
		sells       []domain.SellRecord
	)

	for _, t := range trades {
		switch rec := t.(type) {
		case domain.BuyRecord:
			stats.Buys++
		case domain.SellRecord:
			stats.Sells++
			if rec.Profit > 0 {
				stats.Wins++
			} else {
				stats.Losses++
			}
			stats.RealizedProfit += rec.Profit
			profitPcts = append(profitPcts, rec.ProfitPct)
			holdingDays = append(holdingDays, float64(rec.HoldingDays))
			sells = append(sells, rec)
		}
	}

	if stats.Sells == 0 {
		return stats
	}

	stats.WinRate = computeWinRate(stats.Wins, stats.Sells)
	stats.AvgProfitPct = stat.Mean(profitPcts, nil)
	stats.AvgHoldingDays = stat.Mean(holdingDays, nil)

	sort.Float64s(holdingDays)
	stats.MedianHoldingDays = stat.Quantile(0.50, stat.Empirical, holdingDays, nil)
	stats.P90HoldingDays = stat.Quantile(0.90, stat.Empirical, holdingDays, nil)
	stats.MaxConsecutiveLosses = computeMaxConsecutiveLosses(sells)

	return stats
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeMaxConsecutiveLosses finds the longest streak of sells with profit <= 0.
func computeMaxConsecutiveLosses(sells []domain.SellRecord) int {
	maxStreak := 0
	currentStreak := 0

	for _, s := range sells {
		if s.Profit <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
