package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInsufficientCash = errors.New("insufficient cash")

// Broker fills entries and exits for one run and keeps its cash. Cash is
// held as a decimal so that final cash equals the initial capital plus the
// sum of trade PnL exactly.
type Broker struct {
	costs   CostModel
	initial decimal.Decimal
	cash    decimal.Decimal
	tracker Tracker
	seq     int
}

func NewBroker(capital float64, costs CostModel) *Broker {
	c := decimal.NewFromFloat(capital)
	return &Broker{costs: costs, initial: c, cash: c}
}

func (b *Broker) Costs() CostModel         { return b.costs }
func (b *Broker) Initial() decimal.Decimal { return b.initial }
func (b *Broker) Cash() decimal.Decimal    { return b.cash }
func (b *Broker) State() State             { return b.tracker.State() }
func (b *Broker) Tracker() *Tracker        { return &b.tracker }

func (b *Broker) Position() (Position, bool) { return b.tracker.Position() }

// EntryCost is the cash a buy of shares at price would debit.
func (b *Broker) EntryCost(shares int64, price float64) decimal.Decimal {
	return b.costs.BuyCost(shares, price)
}

// Enter fills a buy at p.EntryPrice and opens the position.
func (b *Broker) Enter(p Position) (Position, error) {
	if b.tracker.State() == Open {
		return Position{}, ErrPositionOpen
	}
	cost := b.costs.BuyCost(p.Shares, p.EntryPrice)
	if cost.GreaterThan(b.cash) {
		return Position{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientCash, cost.StringFixed(0), b.cash.StringFixed(0))
	}
	p.EntryCost = cost
	p.BarsHeld = 0
	if err := b.tracker.open(p); err != nil {
		return Position{}, err
	}
	b.cash = b.cash.Sub(cost)
	return p, nil
}

// Exit fills a sell of the whole position at price and returns the trade.
func (b *Broker) Exit(at time.Time, price float64, reason ExitReason) (Trade, error) {
	if price <= 0 {
		return Trade{}, fmt.Errorf("exit price must be positive, got %g", price)
	}
	p, err := b.tracker.close()
	if err != nil {
		return Trade{}, err
	}

	proceeds := b.costs.SellProceeds(p.Shares, price)
	b.cash = b.cash.Add(proceeds)
	net := proceeds.Sub(p.EntryCost)
	b.seq++

	return Trade{
		Seq:        b.seq,
		Symbol:     p.Symbol,
		Strategy:   p.Strategy,
		EntryTime:  p.EntryTime,
		ExitTime:   at,
		EntryPrice: p.EntryPrice,
		ExitPrice:  price,
		Shares:     p.Shares,
		PnL:        net.InexactFloat64(),
		Reason:     reason,
		BarsHeld:   p.BarsHeld,
		Net:        net,
		Cost:       p.EntryCost,
	}, nil
}

// Equity is cash plus the open shares marked at mark.
func (b *Broker) Equity(mark float64) decimal.Decimal {
	p, ok := b.tracker.Position()
	if !ok {
		return b.cash
	}
	return b.cash.Add(p.MarketValue(mark))
}
