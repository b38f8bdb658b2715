package lookup

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etf-chunk-lab/internal/domain"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAlignByDate_Empty(t *testing.T) {
	_, err := AlignByDate(nil)
	assert.ErrorIs(t, err, ErrNoPriceData)
}

func TestAlignByDate_UnionCalendar(t *testing.T) {
	bars := []*domain.PriceBar{
		{Symbol: "GOLDBEES", Date: day0.AddDate(0, 0, 2), Close: 50},
		{Symbol: "NIFTYBEES", Date: day0, Close: 100},
		{Symbol: "NIFTYBEES", Date: day0.AddDate(0, 0, 1), Close: 101},
		{Symbol: "GOLDBEES", Date: day0, Close: 49},
	}

	h, err := AlignByDate(bars)
	require.NoError(t, err)

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{"GOLDBEES", "NIFTYBEES"}, h.Symbols())

	// GOLDBEES has no bar on day 1
	_, ok := h.Bar("GOLDBEES", 1)
	assert.False(t, ok)

	b, ok := h.Bar("GOLDBEES", 2)
	require.True(t, ok)
	assert.Equal(t, 50.0, b.Close)

	// NIFTYBEES has no bar on day 2
	_, ok = h.Bar("NIFTYBEES", 2)
	assert.False(t, ok)

	assert.Equal(t, day0.AddDate(0, 0, 1), h.Date(1))
}

func TestAlignByDate_FirstDuplicateWins(t *testing.T) {
	bars := []*domain.PriceBar{
		{Symbol: "A", Date: day0, Close: 10},
		{Symbol: "A", Date: day0, Close: 99},
	}
	h, err := AlignByDate(bars)
	require.NoError(t, err)

	c, ok := CloseAt(h, "A", 0)
	require.True(t, ok)
	assert.Equal(t, 10.0, c)
}

func TestFromCloses_ZeroIsMissing(t *testing.T) {
	h := FromCloses(day0, []string{"A"}, map[string][]float64{"A": {10, 0, 12}})

	assert.Equal(t, 3, h.Len())
	_, ok := h.Bar("A", 1)
	assert.False(t, ok)
	_, ok = h.Bar("A", 3)
	assert.False(t, ok, "past end of series")
	_, ok = h.Bar("B", 0)
	assert.False(t, ok, "unknown symbol")

	assert.Equal(t, []float64{10, 0, 12}, Closes(h, "A"))
}

func TestHistory_DateBeyondCalendar(t *testing.T) {
	h := FromCloses(day0, []string{"A"}, map[string][]float64{"A": {1, 2}})
	assert.Equal(t, day0.AddDate(0, 0, 3), h.Date(3))
}

func TestLoadCSV(t *testing.T) {
	input := `symbol,date,open,high,low,close,volume
NIFTYBEES,2024-01-01,100,102,99,101,5000
GOLDBEES,2024-01-01,50,51,49,50.5,
`
	bars, err := LoadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "NIFTYBEES", bars[0].Symbol)
	assert.Equal(t, day0, bars[0].Date)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 5000.0, bars[0].Volume)
	assert.Equal(t, 0.0, bars[1].Volume)
}

func TestLoadCSV_Malformed(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("A,not-a-date,1,1,1,1\n"))
	assert.ErrorIs(t, err, ErrMalformedCSV)

	_, err = LoadCSV(strings.NewReader("A,2024-01-01,1\n"))
	assert.ErrorIs(t, err, ErrMalformedCSV)
}
