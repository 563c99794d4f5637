package domain

import (
	"fmt"
	"math"
	"time"
)

// Outcome classifies a signal against its forward extrema.
type Outcome uint8

const (
	OutcomeExpired Outcome = iota // neither threshold reached inside the horizon
	OutcomeTPFirst
	OutcomeSLFirst
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTPFirst:
		return "TP_FIRST"
	case OutcomeSLFirst:
		return "SL_FIRST"
	default:
		return "EXPIRED"
	}
}

// FavorableMovePct is the favorable excursion that counts an expired signal
// as profitable even though the formal take-profit was not hit.
const FavorableMovePct = 0.01

// OutcomeBatch holds one row per signal in parallel slices.
// Side is +1 for long and -1 for short. TakeProfit and StopLoss are fractions.
type OutcomeBatch struct {
	Entry      []float64
	FwdMax     []float64
	FwdMin     []float64
	Side       []float64
	TakeProfit []float64
	StopLoss   []float64
}

// Len devuelve el número de filas.
func (b OutcomeBatch) Len() int { return len(b.Entry) }

// Append adds one row.
func (b *OutcomeBatch) Append(entry float64, ex Extrema, side SignalType, tp, sl float64) {
	b.Entry = append(b.Entry, entry)
	b.FwdMax = append(b.FwdMax, ex.Max)
	b.FwdMin = append(b.FwdMin, ex.Min)
	b.Side = append(b.Side, side.Direction())
	b.TakeProfit = append(b.TakeProfit, tp)
	b.StopLoss = append(b.StopLoss, sl)
}

func (b OutcomeBatch) check() error {
	n := len(b.Entry)
	if len(b.FwdMax) != n || len(b.FwdMin) != n || len(b.Side) != n ||
		len(b.TakeProfit) != n || len(b.StopLoss) != n {
		return fmt.Errorf("outcome batch: column lengths differ (entry=%d)", n)
	}
	return nil
}

// OutcomeResult is the column-wise output of EvaluateOutcomes.
type OutcomeResult struct {
	Outcome    []Outcome
	Return     []float64
	Profitable []bool
}

// EvaluateOutcomes scores every row independently; permuting the rows
// permutes the output the same way.
//
// Only extrema are known, not the order in which they happened, so when both
// thresholds were reached the take-profit wins. Returns are +tp for TP_FIRST
// and -sl for SL_FIRST. An expired row returns its favorable excursion when
// that is at least FavorableMovePct (and counts as profitable), otherwise its
// adverse excursion as a loss. Rows with missing forward data expire flat.
func EvaluateOutcomes(b OutcomeBatch) (OutcomeResult, error) {
	if err := b.check(); err != nil {
		return OutcomeResult{}, err
	}
	n := b.Len()
	res := OutcomeResult{
		Outcome:    make([]Outcome, n),
		Return:     make([]float64, n),
		Profitable: make([]bool, n),
	}

	for i := 0; i < n; i++ {
		entry, dir := b.Entry[i], b.Side[i]
		if entry <= 0 || math.IsNaN(b.FwdMax[i]) || math.IsNaN(b.FwdMin[i]) {
			continue
		}
		up := (b.FwdMax[i] - entry) / entry
		down := (entry - b.FwdMin[i]) / entry
		// dir=+1 → fav=up, adv=down; dir=-1 → swapped. Excursions are >= 0.
		fav := max(0, 0.5*(1+dir)*up+0.5*(1-dir)*down)
		adv := max(0, 0.5*(1+dir)*down+0.5*(1-dir)*up)

		tpHit := fav >= b.TakeProfit[i]
		slHit := adv >= b.StopLoss[i]
		switch {
		case tpHit:
			res.Outcome[i] = OutcomeTPFirst
			res.Return[i] = b.TakeProfit[i]
			res.Profitable[i] = true
		case slHit:
			res.Outcome[i] = OutcomeSLFirst
			res.Return[i] = -b.StopLoss[i]
		case fav >= FavorableMovePct:
			res.Return[i] = fav
			res.Profitable[i] = true
		default:
			res.Return[i] = -adv
		}
	}
	return res, nil
}

// Bucket splits results by the local hour of the signal.
type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketNight Bucket = "night"
)

// Buckets in report order.
var Buckets = []Bucket{BucketDay, BucketNight}

// Day hours are [DayStartHour, DayEndHour) local time.
const (
	DayStartHour = 6
	DayEndHour   = 22
)

// BucketOf devuelve el bucket day/night para un timestamp en ms.
func BucketOf(tsMs int64, loc *time.Location) Bucket {
	if loc == nil {
		loc = time.UTC
	}
	h := time.UnixMilli(tsMs).In(loc).Hour()
	if h >= DayStartHour && h < DayEndHour {
		return BucketDay
	}
	return BucketNight
}

// Score is the aggregate of one bucket.
type Score struct {
	NumSignals    int
	ProfitablePct float64
	AvgReturn     float64
	HitRate       float64
	LossRate      float64
}

// Aggregate groups evaluated rows by bucket. buckets[i] is the bucket of row
// i. Buckets without rows are absent from the map.
func Aggregate(res OutcomeResult, buckets []Bucket) map[Bucket]Score {
	type acc struct {
		n, profitable, losses int
		sum                   float64
	}
	accs := make(map[Bucket]*acc, len(Buckets))
	for i, b := range buckets {
		a := accs[b]
		if a == nil {
			a = &acc{}
			accs[b] = a
		}
		a.n++
		a.sum += res.Return[i]
		if res.Profitable[i] {
			a.profitable++
		}
		if res.Outcome[i] == OutcomeSLFirst {
			a.losses++
		}
	}

	out := make(map[Bucket]Score, len(accs))
	for b, a := range accs {
		n := float64(a.n)
		profitable := float64(a.profitable) / n
		out[b] = Score{
			NumSignals:    a.n,
			ProfitablePct: profitable,
			AvgReturn:     a.sum / n,
			HitRate:       profitable,
			LossRate:      float64(a.losses) / n,
		}
	}
	return out
}
