package detector

// detector.go: detección de absorción sobre el tape.
//
// Por cada trade: expulsar del window lo más viejo que AbsorptionWindow,
// actualizar el bin de su precio y, si el trade es grande, evaluarlo como
// candidato. Un candidato sólo se emite si pasa la regla de banda y las dos
// puertas de confirmación (liquidez y follow-through).

import (
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
	"github.com/alejandrodnm/orderflow/internal/ports"
)

const (
	// SmallOrderMax is the largest quantity counted as a small absorbing order.
	SmallOrderMax = 0.5
	// LiquidityPercentile is the heat-map percentile the candidate's bucket
	// must reach.
	LiquidityPercentile = 90.0
	// ConfirmHorizon is the look-ahead of the follow-through gate.
	ConfirmHorizon = 5 * time.Minute

	defaultBucketSize = 1.0
)

// Config parametriza un Detector.
type Config struct {
	Params     domain.ParameterSet
	BucketSize float64 // heat-map price bucket width, default 1.0
}

// Stats counts how candidates fared, to diagnose rejections.
type Stats struct {
	Trades          int
	Candidates      int
	RejectedNoSmall int // no small opposing trade inside the band
	RejectedBand    int // an opposing trade sat outside the band
	RejectedVolume  int // bucket below the liquidity percentile
	RejectedFollow  int // no forward follow-through
	Emitted         int
}

// Detector turns a tape into absorption signals. It is not safe for
// concurrent use; every run builds its own.
type Detector struct {
	cfg    Config
	oracle ports.ForwardOracle
	state  *DetectorState
	stats  Stats

	windowMs int64
	idleMs   int64
}

// New crea un Detector con estado vacío.
func New(cfg Config, oracle ports.ForwardOracle) *Detector {
	if cfg.BucketSize <= 0 {
		cfg.BucketSize = defaultBucketSize
	}
	return &Detector{
		cfg:      cfg,
		oracle:   oracle,
		state:    NewDetectorState(),
		windowMs: cfg.Params.AbsorptionWindow.Milliseconds(),
		idleMs:   cfg.Params.VolumeWindow.Milliseconds(),
	}
}

// State exposes the detector state for inspection.
func (d *Detector) State() *DetectorState { return d.state }

// Stats devuelve los contadores acumulados.
func (d *Detector) Stats() Stats { return d.stats }

// Reset clears state and counters.
func (d *Detector) Reset() {
	d.state.Reset()
	d.stats = Stats{}
}

// OnTrade feeds the next trade. index is the trade's position on the tape and
// is carried into the signal. Trades must arrive in timestamp order.
func (d *Detector) OnTrade(index int, t domain.TradeEvent) (domain.Signal, bool) {
	d.stats.Trades++

	d.state.evict(t.Timestamp - d.windowMs)
	key := domain.BucketKey(t.Price, d.cfg.BucketSize)
	d.state.bin(key).Add(t, d.idleMs)
	d.state.push(t)

	if t.Quantity < d.cfg.Params.MinLargeOrder {
		return domain.Signal{}, false
	}
	d.stats.Candidates++

	if !d.absorbed(t) {
		return domain.Signal{}, false
	}

	bin := d.state.bins[key]
	threshold := domain.Percentile(d.state.activeTotals(t.Timestamp, d.idleMs), LiquidityPercentile)
	if math.IsNaN(threshold) || bin.Total() < threshold {
		d.stats.RejectedVolume++
		return domain.Signal{}, false
	}

	label := domain.LabelFor(t.Side)
	typ := label.SignalType()
	if !d.followedThrough(t, typ) {
		d.stats.RejectedFollow++
		return domain.Signal{}, false
	}

	own, opposing := bin.BuyVolume, bin.SellVolume
	if t.Side == domain.SideSeller {
		own, opposing = opposing, own
	}

	sig := domain.Signal{
		Type:           typ,
		Label:          label,
		Timestamp:      t.Timestamp,
		Price:          t.Price,
		TriggerQty:     t.Quantity,
		BucketVolume:   bin.Total(),
		ImbalanceRatio: domain.SafeRatio(own, opposing),
		TradeIndex:     index,
	}
	d.stats.Emitted++
	slog.Debug("absorption signal",
		"label", label,
		"type", typ,
		"ts", t.Timestamp,
		"price", t.Price,
		"qty", t.Quantity,
		"bucket_volume", sig.BucketVolume,
	)
	return sig, true
}

// absorbed applies the band rule: at least one small opposing trade within
// ±PriceRangePct, and every opposing trade in the window inside that band.
// A single outlier anywhere in the window vetoes the candidate.
func (d *Detector) absorbed(large domain.TradeEvent) bool {
	band := large.Price * d.cfg.Params.PriceRangePct
	lo, hi := large.Price-band, large.Price+band
	opposing := large.Side.Opposite()

	small := 0
	for _, w := range d.state.Window() {
		if w.Side != opposing {
			continue
		}
		if w.Price < lo || w.Price > hi {
			d.stats.RejectedBand++
			return false
		}
		if w.Quantity <= SmallOrderMax {
			small++
		}
	}
	if small == 0 {
		d.stats.RejectedNoSmall++
		return false
	}
	return true
}

func (d *Detector) followedThrough(t domain.TradeEvent, typ domain.SignalType) bool {
	if d.oracle == nil {
		return false
	}
	ex, ok := d.oracle.Lookup(t.Timestamp, ConfirmHorizon)
	if !ok {
		return false
	}
	c := d.cfg.Params.ConfirmThreshold
	if typ == domain.SignalBuy {
		return ex.Max >= t.Price*(1+c)
	}
	return ex.Min <= t.Price*(1-c)
}
