package ingestion

import (
	"testing"

	"etf-chunk-lab/internal/domain"
)

func TestSortBars(t *testing.T) {
	bars := []*domain.PriceBar{
		bar("SPY", 3, 1),
		bar("EEM", 2, 1),
		bar("SPY", 1, 1),
		bar("EEM", 1, 1),
	}

	SortBars(bars)

	want := []struct {
		symbol string
		day    int
	}{{"EEM", 1}, {"EEM", 2}, {"SPY", 1}, {"SPY", 3}}
	for i, w := range want {
		if bars[i].Symbol != w.symbol || !bars[i].Date.Equal(day(w.day)) {
			t.Errorf("bars[%d] = %s %v, want %s day %d", i, bars[i].Symbol, bars[i].Date, w.symbol, w.day)
		}
	}

	if err := ValidateBarOrdering(bars); err != nil {
		t.Errorf("sorted bars should validate: %v", err)
	}
}

func TestValidateBarOrdering(t *testing.T) {
	tests := []struct {
		name    string
		bars    []*domain.PriceBar
		wantErr bool
	}{
		{"empty", nil, false},
		{"single", []*domain.PriceBar{bar("SPY", 1, 1)}, false},
		{"ordered", []*domain.PriceBar{bar("SPY", 1, 1), bar("SPY", 2, 1)}, false},
		{"date reversed", []*domain.PriceBar{bar("SPY", 2, 1), bar("SPY", 1, 1)}, true},
		{"duplicate", []*domain.PriceBar{bar("SPY", 1, 1), bar("SPY", 1, 2)}, true},
		{"symbol reversed", []*domain.PriceBar{bar("SPY", 1, 1), bar("EEM", 1, 1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBarOrdering(tt.bars)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBarOrdering() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
