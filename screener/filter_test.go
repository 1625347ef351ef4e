package screener

import (
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, market.KST)

// daily returns n flat daily bars around price.
func daily(n int, price float64, vol int64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Time:   day0.AddDate(0, 0, i),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: vol,
		}
	}
	return bars
}

// trend returns n daily bars whose close moves by step each day.
func trend(n int, start, step float64) []market.Bar {
	bars := daily(n, start, 1000)
	for i := range bars {
		c := start + step*float64(i)
		bars[i].Open, bars[i].Close = c, c
		bars[i].High, bars[i].Low = c+1, c-1
	}
	return bars
}

func withLast(bars []market.Bar, f func(b *market.Bar)) []market.Bar {
	f(&bars[len(bars)-1])
	return bars
}

func TestFilters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter Filter
		bars   []market.Bar
		passed bool
		value  float64
	}{
		{"min volume", MinVolume(100_000, 5), daily(10, 100, 200_000), true, 200_000},
		{"min volume short", MinVolume(100_000, 5), daily(10, 100, 50_000), false, 50_000},
		{
			name:   "volume spike",
			filter: VolumeSpike(2, 20),
			bars:   withLast(daily(20, 100, 1000), func(b *market.Bar) { b.Volume = 3000 }),
			passed: true,
			value:  3,
		},
		{
			name:   "volume spike without history volume",
			filter: VolumeSpike(2, 20),
			bars:   withLast(daily(20, 100, 0), func(b *market.Bar) { b.Volume = 3000 }),
		},
		{
			name:   "volume spike single bar",
			filter: VolumeSpike(2, 20),
			bars:   daily(1, 100, 1000),
		},
		{
			name:   "volume increase",
			filter: VolumeIncrease(3),
			bars: func() []market.Bar {
				b := daily(4, 100, 0)
				for i := range b {
					b[i].Volume = int64(100 * (i + 1))
				}
				return b
			}(),
			passed: true,
			value:  3,
		},
		{
			name:   "volume increase broken",
			filter: VolumeIncrease(3),
			bars: func() []market.Bar {
				b := daily(4, 100, 0)
				for i, v := range []int64{100, 200, 150, 300} {
					b[i].Volume = v
				}
				return b
			}(),
			value: 1,
		},
		{"volume increase too few bars", VolumeIncrease(3), daily(3, 100, 1000), false, 0},
		{"price range", PriceRange(1000, 500_000), daily(5, 5000, 1000), true, 5000},
		{"price range below", PriceRange(1000, 500_000), daily(5, 100, 1000), false, 100},
		{
			name:   "price above ma",
			filter: PriceAboveMA(20),
			bars: withLast(daily(20, 100, 1000), func(b *market.Bar) {
				b.Close, b.High = 110, 111
			}),
			passed: true,
			value:  110,
		},
		{"price above ma warming up", PriceAboveMA(20), daily(19, 100, 1000), false, 0},
		{
			name:   "price change inside band",
			filter: PriceChange(-0.05, 0.05),
			bars:   withLast(daily(5, 100, 1000), func(b *market.Bar) { b.Close, b.High = 103, 104 }),
			passed: true,
			value:  3,
		},
		{
			name:   "price change outside band",
			filter: PriceChange(-0.05, 0.05),
			bars:   withLast(daily(5, 100, 1000), func(b *market.Bar) { b.Close, b.High = 110, 111 }),
			value:  10,
		},
		{
			name:   "positive change",
			filter: PositiveChange(2),
			bars: func() []market.Bar {
				b := daily(5, 100, 1000)
				b[3].Open, b[4].Open = 99.5, 99.5
				return b
			}(),
			passed: true,
			value:  2,
		},
		{"positive change flat", PositiveChange(2), daily(5, 100, 1000), false, 0},
		{"bullish alignment", MAAlignment(true, 5, 20, 60), trend(60, 100, 1), true, 0},
		{"bullish alignment on a downtrend", MAAlignment(true, 5, 20, 60), trend(60, 200, -1), false, 0},
		{"bearish alignment", MAAlignment(false, 5, 20, 60), trend(60, 200, -1), true, 0},
		{"alignment warming up", MAAlignment(true, 5, 20, 60), trend(59, 100, 1), false, 0},
		{"box range", BoxRange(10, 0.05), daily(10, 100, 1000), true, 2.02},
		{
			name:   "box range broken",
			filter: BoxRange(10, 0.05),
			bars:   withLast(daily(10, 100, 1000), func(b *market.Bar) { b.High = 120 }),
			value:  21.21,
		},
		{"near year high", NearYearHigh(0.05), daily(30, 100, 1000), true, 99.01},
		{
			name:   "far from year high",
			filter: NearYearHigh(0.05),
			bars: func() []market.Bar {
				b := daily(30, 100, 1000)
				b[0].High = 200
				return b
			}(),
			value: 50,
		},
		{"near year low", NearYearLow(0.10), daily(30, 100, 1000), true, 101.01},
		{
			name:   "long candle",
			filter: LongCandle(0.05),
			bars:   withLast(daily(5, 100, 1000), func(b *market.Bar) { b.Close, b.High = 106, 106 }),
			passed: true,
			value:  6,
		},
		{"short candle", LongCandle(0.05), daily(5, 100, 1000), false, 0},
		{"flat candle is not bullish", BullishCandle(), daily(5, 100, 1000), false, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := tt.filter.Apply(tt.bars)
			assert.Equal(t, tt.filter.Name, res.Filter)
			assert.Equal(t, tt.passed, res.Passed, res.Reason)
			assert.InDelta(t, tt.value, res.Value, 0.01)
		})
	}
}

func TestFilterWithoutBars(t *testing.T) {
	t.Parallel()

	res := MinVolume(1, 5).Apply(nil)
	assert.False(t, res.Passed)
	assert.Equal(t, "no bars", res.Reason)

	res = MAAlignment(true, 5).Apply(daily(10, 100, 1000))
	assert.False(t, res.Passed)
	assert.Contains(t, res.Reason, "at least two periods")
}

func TestNewFilter(t *testing.T) {
	t.Parallel()

	f, err := NewFilter("min_volume", nil)
	require.NoError(t, err)
	assert.True(t, f.Apply(daily(5, 100, 100_000)).Passed)

	f, err = NewFilter("min_volume", strategies.Params{"min_volume": 200_000})
	require.NoError(t, err)
	assert.False(t, f.Apply(daily(5, 100, 100_000)).Passed)

	f, err = NewFilter("ma_alignment", strategies.Params{"ascending": 0})
	require.NoError(t, err)
	assert.True(t, f.Apply(trend(60, 200, -1)).Passed)

	for _, name := range FilterNames() {
		_, err := NewFilter(name, nil)
		assert.NoError(t, err, name)
	}

	tests := []struct {
		name   string
		filter string
		params strategies.Params
		errMsg string
	}{
		{"unknown filter", "rsi", nil, "unknown filter"},
		{"unknown parameter", "min_volume", strategies.Params{"days_back": 3}, `unknown parameter "days_back"`},
		{"fractional period", "price_above_ma", strategies.Params{"period": 2.5}, "positive whole number"},
		{"zero lookback", "box_range", strategies.Params{"lookback": 0}, "positive whole number"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewFilter(tt.filter, tt.params)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
	_, err = NewFilter("rsi", nil)
	assert.ErrorIs(t, err, ErrUnknownFilter)
}

func TestPreset(t *testing.T) {
	t.Parallel()

	for _, name := range PresetNames() {
		filters, err := Preset(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, filters, name)
	}

	def, err := Preset("")
	require.NoError(t, err)
	assert.Equal(t, []string{"min_volume", "price_range", "price_above_ma"}, names(def))

	_, err = Preset("yolo")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func names(filters []Filter) []string {
	out := make([]string, len(filters))
	for i, f := range filters {
		out[i] = f.Name
	}
	return out
}
