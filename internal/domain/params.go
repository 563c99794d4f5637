package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ParameterSet is one point of the sweep grid. Percentages are fractions
// (0.01 = 1%).
type ParameterSet struct {
	AbsorptionWindow time.Duration // rolling trade window of the detector
	PriceRangePct    float64       // band around the large trade for opposing trades
	MinLargeOrder    float64       // quantity that makes a trade "large"
	VolumeWindow     time.Duration // idle time after which a heat-map bin resets
	ConfirmThreshold float64       // forward move required by the follow-through gate
	StopLossPct      float64
	TakeProfitPct    float64
	TrailingStopPct  float64       // 0 disables the trailing stop
	Cooldown         time.Duration // 0 disables the post-close cooldown
}

// Validate rejects parameter sets a run cannot use.
func (p ParameterSet) Validate() error {
	var errs []error
	if p.AbsorptionWindow <= 0 {
		errs = append(errs, errors.New("absorption window must be positive"))
	}
	if p.VolumeWindow <= 0 {
		errs = append(errs, errors.New("volume window must be positive"))
	}
	if p.MinLargeOrder <= 0 {
		errs = append(errs, errors.New("min large order must be positive"))
	}
	if !fraction(p.PriceRangePct, false) {
		errs = append(errs, fmt.Errorf("price range %v out of [0,1)", p.PriceRangePct))
	}
	if !fraction(p.ConfirmThreshold, false) {
		errs = append(errs, fmt.Errorf("confirm threshold %v out of [0,1)", p.ConfirmThreshold))
	}
	if !fraction(p.StopLossPct, true) {
		errs = append(errs, fmt.Errorf("stop loss %v out of (0,1)", p.StopLossPct))
	}
	if !fraction(p.TakeProfitPct, true) {
		errs = append(errs, fmt.Errorf("take profit %v out of (0,1)", p.TakeProfitPct))
	}
	if !fraction(p.TrailingStopPct, false) {
		errs = append(errs, fmt.Errorf("trailing stop %v out of [0,1)", p.TrailingStopPct))
	}
	if p.Cooldown < 0 {
		errs = append(errs, errors.New("cooldown must not be negative"))
	}
	return errors.Join(errs...)
}

func fraction(v float64, strictlyPositive bool) bool {
	if math.IsNaN(v) || v >= 1 || v < 0 {
		return false
	}
	return !strictlyPositive || v > 0
}

// Key is a stable, human-readable identity used in logs and storage.
func (p ParameterSet) Key() string {
	return fmt.Sprintf("aw=%s pr=%g lo=%g vw=%s ct=%g sl=%g tp=%g ts=%g cd=%s",
		p.AbsorptionWindow, p.PriceRangePct, p.MinLargeOrder, p.VolumeWindow,
		p.ConfirmThreshold, p.StopLossPct, p.TakeProfitPct, p.TrailingStopPct, p.Cooldown)
}

// Grid enumerates the values to try for every knob.
type Grid struct {
	AbsorptionWindow []time.Duration
	PriceRangePct    []float64
	MinLargeOrder    []float64
	VolumeWindow     []time.Duration
	ConfirmThreshold []float64
	StopLossPct      []float64
	TakeProfitPct    []float64
	TrailingStopPct  []float64 // empty = {0}
	Cooldown         []time.Duration
}

// Size devuelve el número de combinaciones del grid.
func (g Grid) Size() int {
	n := len(g.AbsorptionWindow) * len(g.PriceRangePct) * len(g.MinLargeOrder) *
		len(g.VolumeWindow) * len(g.ConfirmThreshold) * len(g.StopLossPct) * len(g.TakeProfitPct)
	return n * max(1, len(g.TrailingStopPct)) * max(1, len(g.Cooldown))
}

// Expand returns the Cartesian product of the grid in a deterministic order
// (last knob varies fastest). Sets are not validated here; a malformed set
// fails its own run only.
func (g Grid) Expand() ([]ParameterSet, error) {
	required := []struct {
		name string
		n    int
	}{
		{"absorption_window", len(g.AbsorptionWindow)},
		{"price_range_pct", len(g.PriceRangePct)},
		{"min_large_order", len(g.MinLargeOrder)},
		{"volume_window", len(g.VolumeWindow)},
		{"confirm_threshold", len(g.ConfirmThreshold)},
		{"stop_loss_pct", len(g.StopLossPct)},
		{"take_profit_pct", len(g.TakeProfitPct)},
	}
	for _, k := range required {
		if k.n == 0 {
			return nil, fmt.Errorf("domain.Grid.Expand: knob %s has no values", k.name)
		}
	}

	trailing := g.TrailingStopPct
	if len(trailing) == 0 {
		trailing = []float64{0}
	}
	cooldowns := g.Cooldown
	if len(cooldowns) == 0 {
		cooldowns = []time.Duration{0}
	}

	sets := make([]ParameterSet, 0, g.Size())
	for _, aw := range g.AbsorptionWindow {
		for _, pr := range g.PriceRangePct {
			for _, lo := range g.MinLargeOrder {
				for _, vw := range g.VolumeWindow {
					for _, ct := range g.ConfirmThreshold {
						for _, sl := range g.StopLossPct {
							for _, tp := range g.TakeProfitPct {
								for _, ts := range trailing {
									for _, cd := range cooldowns {
										sets = append(sets, ParameterSet{
											AbsorptionWindow: aw,
											PriceRangePct:    pr,
											MinLargeOrder:    lo,
											VolumeWindow:     vw,
											ConfirmThreshold: ct,
											StopLossPct:      sl,
											TakeProfitPct:    tp,
											TrailingStopPct:  ts,
											Cooldown:         cd,
										})
									}
								}
							}
						}
					}
				}
			}
		}
	}
	return sets, nil
}
