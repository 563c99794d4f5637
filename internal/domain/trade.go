package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Side is the aggressor (liquidity-taking) side of a trade.
type Side int

const (
	SideUnknown Side = iota
	SideBuyer
	SideSeller
)

func (s Side) String() string {
	switch s {
	case SideBuyer:
		return "buyer"
	case SideSeller:
		return "seller"
	default:
		return "unknown"
	}
}

// Opposite devuelve el lado contrario. SideUnknown se queda igual.
func (s Side) Opposite() Side {
	switch s {
	case SideBuyer:
		return SideSeller
	case SideSeller:
		return SideBuyer
	default:
		return SideUnknown
	}
}

// ParseSide accepts the spellings seen in exchange exports.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buyer", "buy", "b":
		return SideBuyer, nil
	case "seller", "sell", "s":
		return SideSeller, nil
	}
	return SideUnknown, fmt.Errorf("unknown side %q", s)
}

// SideFromBuyerMaker maps the Binance-style is_buyer_maker flag: when the
// buyer was the maker, the seller took liquidity.
func SideFromBuyerMaker(isBuyerMaker bool) Side {
	if isBuyerMaker {
		return SideSeller
	}
	return SideBuyer
}

// TradeEvent is one print on the tape. Timestamp is epoch milliseconds.
type TradeEvent struct {
	Timestamp int64
	Price     float64
	Quantity  float64
	Side      Side
}

// Time devuelve el timestamp como time.Time en UTC.
func (t TradeEvent) Time() time.Time {
	return time.UnixMilli(t.Timestamp).UTC()
}

// Validate checks the per-trade invariants. The index in the returned error
// is -1; ValidateSequence fills it in.
func (t TradeEvent) Validate() error {
	switch {
	case math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0:
		return &DataValidationError{Index: -1, Trade: t, Reason: "price must be positive"}
	case math.IsNaN(t.Quantity) || math.IsInf(t.Quantity, 0) || t.Quantity <= 0:
		return &DataValidationError{Index: -1, Trade: t, Reason: "quantity must be positive"}
	case t.Side != SideBuyer && t.Side != SideSeller:
		return &DataValidationError{Index: -1, Trade: t, Reason: "invalid side"}
	}
	return nil
}

// ValidateSequence rejects the first malformed or out-of-order trade.
// Equal timestamps are allowed.
func ValidateSequence(trades []TradeEvent) error {
	for i, t := range trades {
		if err := t.Validate(); err != nil {
			verr := err.(*DataValidationError)
			verr.Index = i
			return verr
		}
		if i > 0 && t.Timestamp < trades[i-1].Timestamp {
			return &DataValidationError{
				Index:  i,
				Trade:  t,
				Reason: fmt.Sprintf("timestamp %d before previous %d", t.Timestamp, trades[i-1].Timestamp),
			}
		}
	}
	return nil
}
