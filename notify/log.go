package notify

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogNotifier writes events to the log instead of a chat.
type LogNotifier struct {
	Entry *log.Entry // the standard logger when nil
}

func (n LogNotifier) Notify(ctx context.Context, ev Event) error {
	e := n.Entry
	if e == nil {
		e = log.NewEntry(log.StandardLogger())
	}
	e = e.WithContext(ctx).WithField("event", ev.Kind)

	switch ev.Kind {
	case KindSignal:
		s := ev.Signal
		e.WithFields(log.Fields{
			"symbol":   s.Symbol,
			"strategy": s.Strategy,
			"price":    s.Price,
			"stop":     s.StopLoss,
			"target":   s.TakeProfit,
			"bar":      s.Time,
		}).Infof("signal: %s", s.Reason)
	case KindResult:
		r := ev.Result
		e.WithFields(log.Fields{
			"symbol":       r.Symbol,
			"strategy":     r.Strategy,
			"trades":       r.Metrics.Trades,
			"total_return": r.Metrics.TotalReturn,
			"max_drawdown": r.Metrics.MaxDrawdown,
		}).Info("backtest result")
	case KindError:
		e.WithError(ev.Err).Error("backtest error")
	default:
		e.Info(ev.Text)
	}
	return nil
}
