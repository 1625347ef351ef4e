package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var won = message.NewPrinter(language.Korean)

// FormatHTML renders ev in Telegram's HTML subset.
func FormatHTML(ev Event) string {
	switch ev.Kind {
	case KindSignal:
		if ev.Signal != nil {
			return formatSignal(ev)
		}
	case KindResult:
		if ev.Result != nil {
			return formatResult(ev)
		}
	case KindError:
		if ev.Err != nil {
			return fmt.Sprintf("🚨 <b>Error</b>\n\n⏰ %s\n📝 %s",
				ev.Time.In(market.KST).Format("2006-01-02 15:04:05"), html.EscapeString(ev.Err.Error()))
		}
	}
	return html.EscapeString(ev.Text)
}

func pctFrom(price, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return (price - ref) / ref * 100
}

func formatSignal(ev Event) string {
	s := ev.Signal
	lines := []string{
		"🔵 <b>BUY signal</b>",
		"",
		fmt.Sprintf("📌 <b>Symbol:</b> %s", html.EscapeString(s.Symbol)),
		fmt.Sprintf("📊 <b>Strategy:</b> %s", s.Strategy),
		won.Sprintf("💰 <b>Entry:</b> %.0f KRW", s.Price),
		won.Sprintf("🛑 <b>Stop:</b> %.0f KRW (%.1f%%)", s.StopLoss, pctFrom(s.StopLoss, s.Price)),
		won.Sprintf("🎯 <b>Target:</b> %.0f KRW (%.1f%%)", s.TakeProfit, pctFrom(s.TakeProfit, s.Price)),
		fmt.Sprintf("📝 <b>Reason:</b> %s", html.EscapeString(s.Reason)),
		fmt.Sprintf("⏰ <b>Bar:</b> %s", s.Time.In(market.KST).Format("2006-01-02 15:04")),
		fmt.Sprintf("💪 <b>Strength:</b> %.2f", s.Strength),
	}
	return strings.Join(lines, "\n")
}

func formatResult(ev Event) string {
	r := ev.Result
	m := r.Metrics
	arrow := "📉"
	if m.TotalReturn > 0 {
		arrow = "📈"
	}
	lines := []string{
		fmt.Sprintf("%s <b>Backtest</b> %s %s %s", arrow, r.Strategy, html.EscapeString(r.Symbol), r.Timeframe),
		fmt.Sprintf("%s to %s", r.Start.In(market.KST).Format("2006-01-02"), r.End.In(market.KST).Format("2006-01-02")),
		"",
		"📊 <b>Returns</b>",
		fmt.Sprintf("  • Total return: %.2f%%", m.TotalReturn*100),
		fmt.Sprintf("  • CAGR: %s", percent(m.CAGR)),
		won.Sprintf("  • Net P/L: %.0f KRW", m.TotalPnL),
		"",
		"⚠️ <b>Risk</b>",
		fmt.Sprintf("  • Max drawdown: %.2f%%", m.MaxDrawdown*100),
		fmt.Sprintf("  • Sharpe: %s", m.Sharpe.Format(2)),
		"",
		"📈 <b>Trades</b>",
		fmt.Sprintf("  • Count: %d", m.Trades),
		fmt.Sprintf("  • Win rate: %.1f%%", m.WinRate*100),
		fmt.Sprintf("  • Profit factor: %s", m.ProfitFactor.Format(2)),
		fmt.Sprintf("  • Avg holding: %.1f days", m.AvgHoldingDays),
	}
	return strings.Join(lines, "\n")
}

func percent(v metrics.Value) string {
	if f, ok := v.Float(); ok {
		return fmt.Sprintf("%.2f%%", f*100)
	}
	return v.Format(2)
}
