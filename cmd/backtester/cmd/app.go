package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/notify"
	"github.com/rustyeddy/backtester/strategies"
	log "github.com/sirupsen/logrus"
)

const notifyTimeout = 15 * time.Second

// symbolFromPath turns data/005930.csv into 005930.
func symbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func loadSeries(path, symbol string, tf market.Timeframe) (*market.Series, error) {
	if path == "" {
		return nil, fmt.Errorf("no bar data: set --data or data.csv")
	}
	if symbol == "" {
		symbol = symbolFromPath(path)
	}
	s, err := market.LoadCSV(path, symbol, tf)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	log.WithFields(log.Fields{
		"symbol": symbol,
		"bars":   s.Len(),
		"from":   s.Start(),
		"to":     s.End(),
	}).Debug("bars loaded")
	return s, nil
}

// parseParams converts --param key=value pairs to strategy parameters.
func parseParams(kv map[string]string) (strategies.Params, error) {
	if len(kv) == 0 {
		return nil, nil
	}
	p := make(strategies.Params, len(kv))
	for k, v := range kv {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", k, err)
		}
		p[k] = f
	}
	return p, nil
}

// openSink returns the journal configured in c, or nil for "none".
func openSink(c *config.Config) (journal.Sink, error) {
	switch c.Journal.Type {
	case config.JournalSQLite:
		j, err := journal.NewSQLite(c.Journal.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		return j, nil
	case config.JournalCSV:
		j, err := journal.NewCSV(c.Journal.Dir)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		return j, nil
	}
	return nil, nil
}

// newDispatcher always logs events and adds Telegram when it is enabled.
func newDispatcher(c *config.Config) (*notify.Dispatcher, error) {
	notifiers := []notify.Notifier{notify.LogNotifier{}}
	if c.Notify.Telegram {
		tg := notify.NewTelegram(c.Notify.Token, c.Notify.ChatID)
		if !tg.Configured() {
			return nil, fmt.Errorf("%w (set %s and %s)", notify.ErrNotConfigured, config.EnvTelegramToken, config.EnvTelegramChatID)
		}
		notifiers = append(notifiers, tg)
	}
	return notify.NewDispatcher(notifyTimeout, notifiers...)
}

// dayBounds returns [00:00, 24:00) KST of the given YYYY-MM-DD.
func dayBounds(day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, market.KST)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return t, t.AddDate(0, 0, 1), nil
}
