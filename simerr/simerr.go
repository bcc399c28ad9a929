// Package simerr holds the error taxonomy shared by the simulator packages.
// Operations return these wrapped with context; callers classify them with
// errors.Is and report them with Code.
package simerr

import "errors"

var (
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrNoSuchPosition   = errors.New("no such position")
	ErrOverSell         = errors.New("sell quantity exceeds position")
	ErrTradingLocked    = errors.New("trading locked")
	ErrEntriesDisabled  = errors.New("entries disabled")
	ErrStaleMark        = errors.New("missing mark price")
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidPolicy    = errors.New("invalid risk policy")

	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrOutOfOrder      = errors.New("timestamp out of order")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInsufficientCash, "INSUFFICIENT_CASH"},
	{ErrNoSuchPosition, "NO_SUCH_POSITION"},
	{ErrOverSell, "OVER_SELL"},
	{ErrTradingLocked, "TRADING_LOCKED"},
	{ErrEntriesDisabled, "ENTRIES_DISABLED"},
	{ErrStaleMark, "STALE_MARK"},
	{ErrInsufficientData, "INSUFFICIENT_DATA"},
	{ErrInvalidPolicy, "INVALID_POLICY"},
	{ErrInvalidQuantity, "INVALID_QUANTITY"},
	{ErrOutOfOrder, "OUT_OF_ORDER"},
}

// Code returns a stable upper-case code for err, "" for nil and
// "INTERNAL" for anything outside the taxonomy.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}

// Expected reports whether err is a routine rejection (mode gating) as
// opposed to one that signals a sizing or accounting bug.
func Expected(err error) bool {
	return errors.Is(err, ErrTradingLocked) || errors.Is(err, ErrEntriesDisabled)
}
