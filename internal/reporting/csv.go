package reporting

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"etf-chunk-lab/internal/domain"
)

func ftoa(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func writeAll(header []string, rows [][]string) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write csv rows: %w", err)
	}
	return sb.String(), nil
}

// RenderTradesCSV renders a trade log. Sell-only columns are empty for buys.
func RenderTradesCSV(trades []domain.TradeRecord) (string, error) {
	header := []string{
		"day", "date", "action", "symbol", "quantity", "price", "amount", "capital_after", "chunk_id",
		"buy_price", "profit", "profit_pct", "holding_days",
	}

	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		b := t.Base()
		row := []string{
			strconv.Itoa(b.Day), dateString(b.Date), string(t.Action()), b.Symbol,
			strconv.FormatInt(b.Quantity, 10), ftoa(b.Price, 4), ftoa(b.Amount, 2), ftoa(b.CapitalAfter, 2),
			strconv.Itoa(b.ChunkID),
			"", "", "", "",
		}
		if s, ok := t.(domain.SellRecord); ok {
			row[9] = ftoa(s.BuyPrice, 4)
			row[10] = ftoa(s.Profit, 2)
			row[11] = ftoa(s.ProfitPct, 4)
			row[12] = strconv.Itoa(s.HoldingDays)
		}
		rows = append(rows, row)
	}
	return writeAll(header, rows)
}

// RenderEquityCSV renders an equity curve.
func RenderEquityCSV(curve []domain.EquitySnapshot) (string, error) {
	header := []string{"day", "date", "total_value", "available_capital", "invested_capital", "open_positions"}

	rows := make([][]string, 0, len(curve))
	for _, s := range curve {
		rows = append(rows, []string{
			strconv.Itoa(s.Day), dateString(s.Date),
			ftoa(s.TotalValue, 2), ftoa(s.AvailableCapital, 2), ftoa(s.InvestedCapital, 2),
			strconv.Itoa(s.OpenPositions),
		})
	}
	return writeAll(header, rows)
}

// RenderComparisonCSV renders run headline rows.
func RenderComparisonCSV(runs []RunRow) string {
	var sb strings.Builder

	sb.WriteString("run_id,variant,days_simulated,start_capital,final_capital,profit_loss,")
	sb.WriteString("total_return_pct,cagr_pct,max_drawdown_pct,buys,sells,win_rate,avg_holding_days\n")

	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%.2f,%.2f,%.2f,%.6f,%.6f,%.6f,%d,%d,%.6f,%.2f\n",
			r.RunID,
			r.Variant,
			r.DaysSimulated,
			r.StartCapital,
			r.FinalCapital,
			r.ProfitLoss,
			r.TotalReturnPct,
			r.CAGRPct,
			r.MaxDrawdownPct,
			r.Buys,
			r.Sells,
			r.WinRate,
			r.AvgHoldingDays,
		))
	}

	return sb.String()
}
