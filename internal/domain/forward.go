package domain

import (
	"math"
	"sort"
	"time"
)

// Extrema is the forward max/min trade price over a horizon.
type Extrema struct {
	Max float64
	Min float64
}

// ForwardExtrema answers "max/min price in (ts, ts+horizon]" for a tape.
// It is built once and is safe for concurrent reads.
type ForwardExtrema struct {
	horizon time.Duration
	ts      []int64
	prices  []float64
	max     []float64
	min     []float64
	ok      []bool
}

// NewForwardExtrema precomputes forward extrema for every trade index with a
// single right-to-left two-pointer pass and monotonic deques. The tape must be
// sorted by timestamp.
func NewForwardExtrema(trades []TradeEvent, horizon time.Duration) *ForwardExtrema {
	n := len(trades)
	f := &ForwardExtrema{
		horizon: horizon,
		ts:      make([]int64, n),
		prices:  make([]float64, n),
		max:     make([]float64, n),
		min:     make([]float64, n),
		ok:      make([]bool, n),
	}
	for i, t := range trades {
		f.ts[i] = t.Timestamp
		f.prices[i] = t.Price
	}

	h := horizon.Milliseconds()
	// Indices are pushed in decreasing order, so the front of each deque
	// holds the highest (latest) index and expires first.
	maxDQ := make([]int, 0, 64)
	minDQ := make([]int, 0, 64)
	maxHead, minHead := 0, 0
	next := n

	for i := n - 1; i >= 0; i-- {
		for next-1 > i && f.ts[next-1] > f.ts[i] {
			next--
			p := f.prices[next]
			for len(maxDQ) > maxHead && f.prices[maxDQ[len(maxDQ)-1]] <= p {
				maxDQ = maxDQ[:len(maxDQ)-1]
			}
			maxDQ = append(maxDQ, next)
			for len(minDQ) > minHead && f.prices[minDQ[len(minDQ)-1]] >= p {
				minDQ = minDQ[:len(minDQ)-1]
			}
			minDQ = append(minDQ, next)
		}

		limit := f.ts[i] + h
		for maxHead < len(maxDQ) && f.ts[maxDQ[maxHead]] > limit {
			maxHead++
		}
		for minHead < len(minDQ) && f.ts[minDQ[minHead]] > limit {
			minHead++
		}

		if maxHead < len(maxDQ) {
			f.max[i] = f.prices[maxDQ[maxHead]]
			f.min[i] = f.prices[minDQ[minHead]]
			f.ok[i] = true
		} else {
			f.max[i] = math.NaN()
			f.min[i] = math.NaN()
		}
	}
	return f
}

// Horizon devuelve el horizonte con el que se precalculó.
func (f *ForwardExtrema) Horizon() time.Duration { return f.horizon }

// Len is the number of trades covered.
func (f *ForwardExtrema) Len() int { return len(f.ts) }

// At returns the extrema for trade index i. ok is false when no trade falls
// inside the horizon.
func (f *ForwardExtrema) At(i int) (Extrema, bool) {
	if i < 0 || i >= len(f.ts) || !f.ok[i] {
		return Extrema{Max: math.NaN(), Min: math.NaN()}, false
	}
	return Extrema{Max: f.max[i], Min: f.min[i]}, true
}

// Lookup answers for an arbitrary timestamp and horizon. Timestamps present
// on the tape with the precomputed horizon are O(log n); anything else falls
// back to a direct scan of the window.
func (f *ForwardExtrema) Lookup(ts int64, horizon time.Duration) (Extrema, bool) {
	idx := sort.Search(len(f.ts), func(i int) bool { return f.ts[i] >= ts })
	if horizon == f.horizon && idx < len(f.ts) && f.ts[idx] == ts {
		return f.At(idx)
	}

	for idx < len(f.ts) && f.ts[idx] <= ts {
		idx++
	}
	limit := ts + horizon.Milliseconds()
	ex := Extrema{Max: math.Inf(-1), Min: math.Inf(1)}
	found := false
	for ; idx < len(f.ts) && f.ts[idx] <= limit; idx++ {
		ex.Max = math.Max(ex.Max, f.prices[idx])
		ex.Min = math.Min(ex.Min, f.prices[idx])
		found = true
	}
	if !found {
		return Extrema{Max: math.NaN(), Min: math.NaN()}, false
	}
	return ex, true
}
