package strategies

import (
	"testing"
	"time"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, market.KST)

func flat(n int, price float64, vol int64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{Open: price, High: price + 1, Low: price - 1, Close: price, Volume: vol}
	}
	return bars
}

func bar(o, h, l, c float64, v int64) market.Bar {
	return market.Bar{Open: o, High: h, Low: l, Close: c, Volume: v}
}

func stamp(bars []market.Bar, step time.Duration) []market.Bar {
	for i := range bars {
		bars[i].Time = day0.Add(time.Duration(i) * step)
	}
	return bars
}

func window(tf market.Timeframe, bars ...market.Bar) market.Window {
	return market.NewWindow("005930", tf, stamp(bars, tf.Duration()))
}

// limitUpBars: a 30% day at index 5, three tight bars, then a close over the box.
func limitUpBars() []market.Bar {
	bars := flat(5, 100, 1000)
	bars = append(bars,
		bar(101, 130, 100, 130, 5000),
		bar(129.5, 131, 128, 130, 3000),
		bar(129.5, 131, 128, 129, 2000),
		bar(129.5, 131, 128, 129.5, 1500),
		bar(130, 134, 129.5, 133, 2500),
	)
	return bars
}

// breakoutBars: a 6% reference candle on 5x volume at index 15, a quiet
// pullback, and a close above the reference high.
func breakoutBars() []market.Bar {
	bars := flat(15, 100, 1000)
	bars = append(bars,
		bar(100, 107, 99.5, 106, 5000),
		bar(105, 106, 104, 105, 1000),
		bar(105, 106, 104, 105, 1000),
		bar(105, 106, 104, 105, 1000),
		bar(106, 109, 105.5, 108.5, 2000),
	)
	return bars
}

func minute15Bars() []market.Bar {
	bars := flat(59, 100, 1000)
	return append(bars, bar(100, 109, 99.5, 108, 5000))
}

func minute30Bars() []market.Bar {
	bars := flat(69, 100, 1000)
	return append(bars, bar(100, 101.5, 99.5, 101, 2000))
}

func TestSignalValidate(t *testing.T) {
	t.Parallel()

	ok := Signal{Direction: Buy, Price: 100, StopLoss: 95, TakeProfit: 110}
	tests := []struct {
		name    string
		mutate  func(s *Signal)
		wantErr bool
	}{
		{"valid", func(s *Signal) {}, false},
		{"sell direction", func(s *Signal) { s.Direction = "SELL" }, true},
		{"zero price", func(s *Signal) { s.Price = 0 }, true},
		{"zero stop", func(s *Signal) { s.StopLoss = 0 }, true},
		{"stop at entry", func(s *Signal) { s.StopLoss = 100 }, true},
		{"stop above entry", func(s *Signal) { s.StopLoss = 101 }, true},
		{"target at entry", func(s *Signal) { s.TakeProfit = 100 }, true},
		{"target below entry", func(s *Signal) { s.TakeProfit = 90 }, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := ok
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSignal)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.InDelta(t, 2.0, ok.RiskReward(), 1e-9)
	assert.Zero(t, Signal{Price: 100, StopLoss: 100}.RiskReward())
}

func TestParseID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{"limit_up", LimitUp, false},
		{"Limit-Up", LimitUp, false},
		{" breakout ", Breakout, false},
		{"minute15", Minute15, false},
		{"MINUTE30", Minute30, false},
		{"none", Noop, false},
		{"noop", Noop, false},
		{"momentum", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, id := range IDs() {
		s, err := New(id, nil)
		require.NoError(t, err, id)
		assert.Equal(t, id, s.ID())
		assert.Positive(t, s.MinBars())
	}

	_, err := New("momentum", nil)
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = New(LimitUp, Params{"bogus": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown parameter "bogus"`)

	_, err = New(Breakout, Params{"lookback_days": 2.5})
	assert.Error(t, err)

	_, err = New(Noop, Params{"x": 1})
	assert.Error(t, err)

	s, err := NewLimitUp(Params{"limit_up_threshold": 0.25, "lookback_days": 7})
	require.NoError(t, err)
	assert.Equal(t, 0.25, s.Config().LimitUpThreshold)
	assert.Equal(t, 7, s.Config().Lookback)

	m, err := NewMinute15(Params{"use_ema": 1, "ma_period": 80})
	require.NoError(t, err)
	assert.Equal(t, indicators.KindEMA, m.Config().MAKind)
	assert.Equal(t, 80, m.MinBars())

	_, err = NewMinute30(Params{"use_ema": 2})
	assert.Error(t, err)
}

func TestTimeframes(t *testing.T) {
	t.Parallel()

	want := map[ID]market.Timeframe{
		LimitUp:  market.Daily,
		Breakout: market.Daily,
		Minute15: market.Minute15,
		Minute30: market.Minute30,
		Noop:     0,
	}
	for id, tf := range want {
		s, err := New(id, nil)
		require.NoError(t, err)
		assert.Equal(t, tf, s.Timeframe(), id)
	}
}

func TestLimitUpSignal(t *testing.T) {
	t.Parallel()

	s, err := NewLimitUp(nil)
	require.NoError(t, err)

	w := window(market.Daily, limitUpBars()...)
	sig, err := s.GenerateSignal(w)
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.NoError(t, sig.Validate())
	assert.Equal(t, LimitUp, sig.Strategy)
	assert.Equal(t, "005930", sig.Symbol)
	assert.Equal(t, w.Last().Time, sig.Time)
	assert.InDelta(t, 133.0, sig.Price, 1e-9)
	// max(130*0.95, 128*0.99)
	assert.InDelta(t, 126.72, sig.StopLoss, 1e-9)
	// entry + box range (131-128)
	assert.InDelta(t, 136.0, sig.TakeProfit, 1e-9)
	assert.Contains(t, sig.Reason, "recent_limit_up")
	assert.Contains(t, sig.Reason, "box_breakout")
	assert.InDelta(t, sig.StopLoss, s.StopLoss(w, sig.Price), 1e-9)
	assert.InDelta(t, sig.TakeProfit, s.TakeProfit(w, sig.Price), 1e-9)
}

func TestLimitUpNoSignal(t *testing.T) {
	t.Parallel()

	s, _ := NewLimitUp(nil)

	// too short
	sig, err := s.GenerateSignal(window(market.Daily, limitUpBars()[:9]...))
	require.NoError(t, err)
	assert.Nil(t, sig)

	// the close falls back into the box
	bars := limitUpBars()
	bars[9] = bar(130, 131, 128.5, 129.5, 800)
	sig, err = s.GenerateSignal(window(market.Daily, bars...))
	require.NoError(t, err)
	assert.Nil(t, sig)

	// no limit-up day
	sig, err = s.GenerateSignal(window(market.Daily, flat(12, 100, 1000)...))
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestLimitUpMalformedBar(t *testing.T) {
	t.Parallel()

	s, _ := NewLimitUp(nil)
	bars := limitUpBars()
	bars[8].Low = 0
	_, err := s.GenerateSignal(window(market.Daily, bars...))
	assert.Error(t, err)
}

func TestLimitUpExit(t *testing.T) {
	t.Parallel()

	s, _ := NewLimitUp(nil)
	bars := append(limitUpBars(), bar(133, 133.5, 130, 131, 2000))
	w := window(market.Daily, bars...)

	exit, reason := s.ShouldExit(w, Holding{BarsHeld: 1})
	assert.True(t, exit)
	assert.Equal(t, "new_high_reversal", reason)

	bars[10] = bar(131, 135, 130.5, 134.5, 2000)
	exit, _ = s.ShouldExit(window(market.Daily, bars...), Holding{BarsHeld: 1})
	assert.False(t, exit)
}

func TestBreakoutSignal(t *testing.T) {
	t.Parallel()

	s, err := NewBreakout(nil)
	require.NoError(t, err)

	w := window(market.Daily, breakoutBars()...)
	sig, err := s.GenerateSignal(w)
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.NoError(t, sig.Validate())
	assert.InDelta(t, 108.5, sig.Price, 1e-9)
	// max(99.5*0.99, 106*0.97)
	assert.InDelta(t, 102.82, sig.StopLoss, 1e-9)
	// entry + 1.5 * body 6
	assert.InDelta(t, 117.5, sig.TakeProfit, 1e-9)
	// 2000 is under 1.5x the prior five volumes, which include the reference
	assert.Equal(t, "reference_candle, consolidation, breakout, ma_alignment", sig.Reason)
	assert.InDelta(t, 0.8, sig.Strength, 1e-9)
}

func TestBreakoutNoSignal(t *testing.T) {
	t.Parallel()

	s, _ := NewBreakout(nil)

	// pullback broke the reference low
	bars := breakoutBars()
	bars[17] = bar(100, 101, 95, 100, 1000)
	sig, err := s.GenerateSignal(window(market.Daily, bars...))
	require.NoError(t, err)
	assert.Nil(t, sig)

	// close not above the reference high by the margin
	bars = breakoutBars()
	bars[19] = bar(106, 108, 105.5, 107.5, 2000)
	sig, err = s.GenerateSignal(window(market.Daily, bars...))
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestBreakoutExit(t *testing.T) {
	t.Parallel()

	s, _ := NewBreakout(nil)
	bars := append(flat(10, 100, 1000),
		bar(100, 104, 99, 103, 5000),
		bar(103, 103.5, 100, 101, 1500),
	)
	exit, reason := s.ShouldExit(window(market.Daily, bars...), Holding{BarsHeld: 2})
	assert.True(t, exit)
	assert.Equal(t, "volume_spike_reversal", reason)

	bars[11] = bar(101, 104, 100.5, 103.5, 1500)
	exit, _ = s.ShouldExit(window(market.Daily, bars...), Holding{BarsHeld: 2})
	assert.False(t, exit)
}

func TestMinute15Signal(t *testing.T) {
	t.Parallel()

	s, err := NewMinute15(nil)
	require.NoError(t, err)

	w := window(market.Minute15, minute15Bars()...)
	sig, err := s.GenerateSignal(w)
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.NoError(t, sig.Validate())
	assert.InDelta(t, 98.505, sig.StopLoss, 1e-9)
	// entry*1.05 beats ma*1.10 here
	assert.InDelta(t, 113.4, sig.TakeProfit, 1e-9)
	assert.InDelta(t, sig.TakeProfit, s.TakeProfit(w, sig.Price), 1e-9)

	// a 5% candle is not long enough
	bars := minute15Bars()
	bars[59] = bar(100, 106, 99.5, 105, 5000)
	sig, err = s.GenerateSignal(window(market.Minute15, bars...))
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestMinute15Exit(t *testing.T) {
	t.Parallel()

	s, _ := NewMinute15(nil)
	h := Holding{BarsHeld: 1}

	tests := []struct {
		name   string
		next   market.Bar
		exit   bool
		reason string
	}{
		{"under signal low", bar(100, 100.5, 97.5, 98, 1000), true, "candle_low_break"},
		{"under ma", bar(100.5, 101, 99.6, 99.9, 1000), true, "ma_break"},
		{"stretched above ma", bar(108, 111.5, 107, 111, 1000), true, "ma_divergence"},
		{"hold", bar(108, 109, 106, 107, 1000), false, ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			bars := append(minute15Bars(), tt.next)
			exit, reason := s.ShouldExit(window(market.Minute15, bars...), h)
			assert.Equal(t, tt.exit, exit)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestMinute30Signal(t *testing.T) {
	t.Parallel()

	s, err := NewMinute30(nil)
	require.NoError(t, err)

	w := window(market.Minute30, minute30Bars()...)
	sig, err := s.GenerateSignal(w)
	require.NoError(t, err)
	require.NotNil(t, sig)

	ma := (59*100.0 + 101) / 60
	assert.NoError(t, sig.Validate())
	assert.InDelta(t, min(99.5*0.99, ma*0.98), sig.StopLoss, 1e-9)
	assert.InDelta(t, max(ma*1.1, 101*1.05), sig.TakeProfit, 1e-9)
	assert.Equal(t, "above_ma, ma_support, volume_increase, bullish", sig.Reason)

	// no volume increase
	bars := minute30Bars()
	bars[69].Volume = 900
	sig, err = s.GenerateSignal(window(market.Minute30, bars...))
	require.NoError(t, err)
	assert.Nil(t, sig)

	// low never came near the ma
	bars = minute30Bars()
	bars[69] = bar(103, 104.5, 102.5, 104, 2000)
	sig, err = s.GenerateSignal(window(market.Minute30, bars...))
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestMinute30Exit(t *testing.T) {
	t.Parallel()

	s, _ := NewMinute30(nil)
	h := Holding{BarsHeld: 1}

	exit, reason := s.ShouldExit(window(market.Minute30, append(minute30Bars(), bar(100, 100.5, 99, 99.6, 1000))...), h)
	assert.True(t, exit)
	assert.Equal(t, "ma_break", reason)

	exit, reason = s.ShouldExit(window(market.Minute30, append(minute30Bars(), bar(101, 112, 101, 111, 1000))...), h)
	assert.True(t, exit)
	assert.Equal(t, "ma_divergence", reason)

	exit, _ = s.ShouldExit(window(market.Minute30, append(minute30Bars(), bar(101, 102.5, 100.5, 102, 1000))...), h)
	assert.False(t, exit)
}

func TestNoop(t *testing.T) {
	t.Parallel()

	s, err := New(Noop, nil)
	require.NoError(t, err)
	sig, err := s.GenerateSignal(window(market.Daily, limitUpBars()...))
	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.Less(t, s.StopLoss(market.Window{}, 100), 100.0)
	assert.Greater(t, s.TakeProfit(market.Window{}, 100), 100.0)
	_, isExit := s.(ExitEvaluator)
	assert.False(t, isExit)
}

// A signal on bar i depends only on bars up to i.
func TestNoLookahead(t *testing.T) {
	t.Parallel()

	cases := []struct {
		id   ID
		tf   market.Timeframe
		bars []market.Bar
	}{
		{LimitUp, market.Daily, limitUpBars()},
		{Breakout, market.Daily, breakoutBars()},
		{Minute15, market.Minute15, minute15Bars()},
		{Minute30, market.Minute30, minute30Bars()},
	}

	for _, c := range cases {
		c := c
		t.Run(string(c.id), func(t *testing.T) {
			t.Parallel()
			s, err := New(c.id, nil)
			require.NoError(t, err)

			short := stamp(c.bars, c.tf.Duration())
			long := append(append([]market.Bar(nil), short...),
				market.Bar{Time: short[len(short)-1].Time.Add(c.tf.Duration()), Open: 500, High: 900, Low: 1, Close: 2, Volume: 1e9})

			series := &market.Series{Symbol: "005930", Timeframe: c.tf, Bars: long}

			want, err := s.GenerateSignal(market.NewWindow("005930", c.tf, short))
			require.NoError(t, err)
			got, err := s.GenerateSignal(series.Window(len(short) - 1))
			require.NoError(t, err)
			require.NotNil(t, want)
			assert.Equal(t, want, got)
		})
	}
}
