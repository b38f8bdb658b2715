package metrics

import "etf-chunk-lab/internal/domain"

// Compare builds the head-to-head comparison of both variants.
// The winner is the variant with the higher final capital; a tie leaves it empty.
func Compare(global, chunk *domain.RunResult) *domain.Comparison {
	c := &domain.Comparison{Global: global, Chunk: chunk}
	if global == nil || chunk == nil {
		return c
	}

	c.ReturnSpreadPct = global.Metrics.TotalReturnPct - chunk.Metrics.TotalReturnPct
	c.FinalCapitalGap = global.Metrics.FinalCapital - chunk.Metrics.FinalCapital

	switch {
	case c.FinalCapitalGap > 0:
		c.Winner = domain.VariantGlobal
	case c.FinalCapitalGap < 0:
		c.Winner = domain.VariantChunk
	}
	return c
}
