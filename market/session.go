package market

import "time"

// KST is Korea Standard Time. Korea has no daylight saving so a fixed zone is exact.
var KST = time.FixedZone("KST", 9*60*60)

// KRX regular session, local time.
const (
	SessionOpenHour    = 9
	SessionOpenMinute  = 0
	SessionCloseHour   = 15
	SessionCloseMinute = 30
)

// SessionBounds returns the regular-session open and close for the trading
// day containing t.
func SessionBounds(t time.Time) (open, close time.Time) {
	k := t.In(KST)
	y, m, d := k.Date()
	open = time.Date(y, m, d, SessionOpenHour, SessionOpenMinute, 0, 0, KST)
	close = time.Date(y, m, d, SessionCloseHour, SessionCloseMinute, 0, 0, KST)
	return open, close
}

// InSession reports whether a bar starting at t lies inside the regular session.
func InSession(t time.Time) bool {
	open, close := SessionBounds(t)
	return !t.Before(open) && t.Before(close)
}

// SameSession reports whether a and b fall on the same KRX trading date.
func SameSession(a, b time.Time) bool {
	ay, am, ad := a.In(KST).Date()
	by, bm, bd := b.In(KST).Date()
	return ay == by && am == bm && ad == bd
}

// TradingDate truncates t to its KRX calendar date.
func TradingDate(t time.Time) time.Time {
	y, m, d := t.In(KST).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, KST)
}
