package strategy

import (
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
)

const (
	defaultBarInterval = time.Minute
	defaultFastPeriod  = 5
	defaultSlowPeriod  = 20
	defaultMATP        = 0.01
	defaultMASL        = 0.005
)

// MACrossoverConfig configura la estrategia de cruce de medias.
type MACrossoverConfig struct {
	BarInterval   time.Duration // trades are resampled to bar closes
	FastPeriod    int           // bars
	SlowPeriod    int           // bars
	TakeProfitPct float64
	StopLossPct   float64
}

// MACrossover is the baseline: buy when the fast SMA of bar closes crosses
// above the slow one, sell on the cross below.
type MACrossover struct {
	cfg MACrossoverConfig
}

// NewMACrossover crea la estrategia aplicando defaults a los campos vacíos.
func NewMACrossover(cfg MACrossoverConfig) *MACrossover {
	if cfg.BarInterval <= 0 {
		cfg.BarInterval = defaultBarInterval
	}
	if cfg.FastPeriod <= 0 {
		cfg.FastPeriod = defaultFastPeriod
	}
	if cfg.SlowPeriod <= cfg.FastPeriod {
		cfg.SlowPeriod = max(defaultSlowPeriod, cfg.FastPeriod+1)
	}
	if cfg.TakeProfitPct <= 0 {
		cfg.TakeProfitPct = defaultMATP
	}
	if cfg.StopLossPct <= 0 {
		cfg.StopLossPct = defaultMASL
	}
	return &MACrossover{cfg: cfg}
}

// Name implementa Strategy.
func (s *MACrossover) Name() string { return domain.StrategyMACrossover }

// Exits implementa Strategy.
func (s *MACrossover) Exits() (float64, float64) {
	return s.cfg.TakeProfitPct, s.cfg.StopLossPct
}

type bar struct {
	closeTs    int64
	closePrice float64
	lastIndex  int
}

// Signals implementa Strategy. A signal fires at the close of the bar where
// the cross happens.
func (s *MACrossover) Signals(trades []domain.TradeEvent) []domain.Signal {
	bars := resample(trades, s.cfg.BarInterval.Milliseconds())
	fast, slow := s.cfg.FastPeriod, s.cfg.SlowPeriod
	if len(bars) <= slow {
		return nil
	}

	var signals []domain.Signal
	var fastSum, slowSum float64
	prevDiff, havePrev := 0.0, false
	for i, b := range bars {
		fastSum += b.closePrice
		slowSum += b.closePrice
		if i >= fast {
			fastSum -= bars[i-fast].closePrice
		}
		if i >= slow {
			slowSum -= bars[i-slow].closePrice
		}
		if i < slow-1 {
			continue
		}

		diff := fastSum/float64(fast) - slowSum/float64(slow)
		if havePrev {
			var typ domain.SignalType
			switch {
			case prevDiff <= 0 && diff > 0:
				typ = domain.SignalBuy
			case prevDiff >= 0 && diff < 0:
				typ = domain.SignalSell
			}
			if typ != 0 {
				signals = append(signals, domain.Signal{
					Type:       typ,
					Timestamp:  b.closeTs,
					Price:      b.closePrice,
					TradeIndex: b.lastIndex,
				})
			}
		}
		prevDiff, havePrev = diff, true
	}
	return signals
}

// resample agrupa trades en barras de intervalMs y se queda con el cierre.
func resample(trades []domain.TradeEvent, intervalMs int64) []bar {
	var bars []bar
	curBucket := int64(-1)
	for i, t := range trades {
		bucket := t.Timestamp / intervalMs
		if bucket != curBucket || len(bars) == 0 {
			bars = append(bars, bar{})
			curBucket = bucket
		}
		b := &bars[len(bars)-1]
		b.closeTs = t.Timestamp
		b.closePrice = t.Price
		b.lastIndex = i
	}
	return bars
}
