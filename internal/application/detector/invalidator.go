package detector

import (
	"sort"
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
)

const (
	// InvalidationWindow is how far after a signal the invalidator looks.
	InvalidationWindow = 5 * time.Second

	invalidationVolumeFactor = 2.0
	invalidationPriceMove    = 0.002
)

// Invalidator checks the first seconds after a signal for evidence against it.
// It reads the tape only and is safe for concurrent use.
type Invalidator struct {
	trades []domain.TradeEvent
}

// NewInvalidator wraps a timestamp-ordered tape.
func NewInvalidator(trades []domain.TradeEvent) *Invalidator {
	return &Invalidator{trades: trades}
}

// Invalidated reports whether the signal is contradicted in
// (ts, ts+InvalidationWindow].
//
//	buy:  sellVol > 2×buyVol with sellVol > 0, or min price ≤ price×0.998
//	sell: buyVol > 2×sellVol with buyVol > 0, or max price ≥ price×1.002
func (v *Invalidator) Invalidated(sig domain.Signal) bool {
	start := sig.TradeIndex + 1
	if sig.TradeIndex < 0 || sig.TradeIndex >= len(v.trades) {
		start = sort.Search(len(v.trades), func(i int) bool {
			return v.trades[i].Timestamp > sig.Timestamp
		})
	}
	limit := sig.Timestamp + InvalidationWindow.Milliseconds()

	var buyVol, sellVol float64
	minPrice, maxPrice := sig.Price, sig.Price
	for i := start; i < len(v.trades); i++ {
		t := v.trades[i]
		if t.Timestamp > limit {
			break
		}
		if t.Timestamp <= sig.Timestamp {
			continue
		}
		if t.Side == domain.SideBuyer {
			buyVol += t.Quantity
		} else {
			sellVol += t.Quantity
		}
		minPrice = min(minPrice, t.Price)
		maxPrice = max(maxPrice, t.Price)
	}

	if sig.Type == domain.SignalBuy {
		return (sellVol > invalidationVolumeFactor*buyVol && sellVol > 0) ||
			minPrice <= sig.Price*(1-invalidationPriceMove)
	}
	return (buyVol > invalidationVolumeFactor*sellVol && buyVol > 0) ||
		maxPrice >= sig.Price*(1+invalidationPriceMove)
}

// Apply sets sig.Invalidated and returns it.
func (v *Invalidator) Apply(sig domain.Signal) domain.Signal {
	sig.Invalidated = v.Invalidated(sig)
	return sig
}
