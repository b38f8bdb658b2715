// Package metrics computes performance figures from a run's equity curve and trade log.
package metrics

import (
	"math"

	"etf-chunk-lab/internal/domain"
)

// Calculate derives return, CAGR and drawdown from an equity curve.
// totalDays is the number of simulated trading days; years = totalDays / 250.
// It is pure: the same inputs always give the same result.
func Calculate(curve []domain.EquitySnapshot, startCapital float64, totalDays int) domain.Metrics {
	final := startCapital
	if len(curve) > 0 {
		final = curve[len(curve)-1].TotalValue
	}

	m := domain.Metrics{
		FinalCapital: final,
		ProfitLoss:   final - startCapital,
	}
	if startCapital <= 0 {
		return m
	}

	m.TotalReturnPct = (final - startCapital) / startCapital * 100
	m.CAGRPct = computeCAGR(startCapital, final, totalDays)
	m.MaxDrawdownPct = computeMaxDrawdownPct(curve, startCapital)
	return m
}

// computeCAGR annualises growth over totalDays trading days.
func computeCAGR(start, final float64, totalDays int) float64 {
	if totalDays <= 0 || start <= 0 {
		return 0
	}
	if final <= 0 {
		return -100
	}
	years := float64(totalDays) / domain.TradingDaysPerYear
	return (math.Pow(final/start, 1/years) - 1) * 100
}

// computeMaxDrawdownPct returns the largest percentage fall from a running peak.
// The peak starts at the start capital. Snapshots must be in day order.
func computeMaxDrawdownPct(curve []domain.EquitySnapshot, startCapital float64) float64 {
	peak := startCapital
	maxDrawdown := 0.0

	for _, s := range curve {
		if s.TotalValue > peak {
			peak = s.TotalValue
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - s.TotalValue) / peak * 100
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}
