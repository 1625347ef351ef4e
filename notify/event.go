// Package notify delivers signals and finished backtests to people: a
// Telegram chat, the log, or both through an asynchronous Dispatcher.
package notify

import (
	"context"
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/strategies"
)

type Kind string

const (
	KindSignal Kind = "signal"
	KindResult Kind = "result"
	KindError  Kind = "error"
	KindText   Kind = "text"
)

// Event is one message. Exactly one payload field is set, matching Kind.
type Event struct {
	Kind   Kind
	Time   time.Time
	Signal *strategies.Signal
	Result *backtest.Result
	Err    error
	Text   string
}

func SignalEvent(sig strategies.Signal) Event {
	return Event{Kind: KindSignal, Time: time.Now(), Signal: &sig}
}

func ResultEvent(res *backtest.Result) Event {
	return Event{Kind: KindResult, Time: time.Now(), Result: res}
}

func ErrorEvent(err error) Event {
	return Event{Kind: KindError, Time: time.Now(), Err: err}
}

func TextEvent(text string) Event {
	return Event{Kind: KindText, Time: time.Now(), Text: text}
}

// Notifier delivers one event. Implementations may block on I/O.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, ev Event) error

func (f Func) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }
