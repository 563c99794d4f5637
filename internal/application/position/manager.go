package position

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
)

// RepeatPolicy decides what a same-direction signal does to an open position.
type RepeatPolicy string

const (
	RepeatIgnore           RepeatPolicy = "ignore"
	RepeatUpdateTakeProfit RepeatPolicy = "update_take_profit"
)

// InvalidatedPolicy decides how an invalidated signal opens a position.
type InvalidatedPolicy string

const (
	// InvalidatedTighten opens with the stop-loss tightened to
	// domain.InvalidatedStopLossPct.
	InvalidatedTighten InvalidatedPolicy = "tighten"
	// InvalidatedSkip does not open from an invalidated signal.
	InvalidatedSkip InvalidatedPolicy = "skip"
)

// ParseRepeatPolicy acepta "" como el default (ignore).
func ParseRepeatPolicy(s string) (RepeatPolicy, error) {
	switch RepeatPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RepeatIgnore:
		return RepeatIgnore, nil
	case RepeatUpdateTakeProfit:
		return RepeatUpdateTakeProfit, nil
	}
	return "", fmt.Errorf("position: unknown repeat-signal policy %q", s)
}

// ParseInvalidatedPolicy acepta "" como el default (tighten).
func ParseInvalidatedPolicy(s string) (InvalidatedPolicy, error) {
	switch InvalidatedPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", InvalidatedTighten:
		return InvalidatedTighten, nil
	case InvalidatedSkip:
		return InvalidatedSkip, nil
	}
	return "", fmt.Errorf("position: unknown invalidated-signal policy %q", s)
}

// Config holds the exit rules of a run.
type Config struct {
	StopLossPct     float64
	TakeProfitPct   float64
	TrailingStopPct float64 // 0 = off
	Cooldown        time.Duration
	OnRepeatSignal  RepeatPolicy
	OnInvalidated   InvalidatedPolicy
	ReopenOnReverse bool
}

// ConfigFromParams builds a Config from a parameter set with the default
// policies.
func ConfigFromParams(p domain.ParameterSet) Config {
	return Config{
		StopLossPct:     p.StopLossPct,
		TakeProfitPct:   p.TakeProfitPct,
		TrailingStopPct: p.TrailingStopPct,
		Cooldown:        p.Cooldown,
		OnRepeatSignal:  RepeatIgnore,
		OnInvalidated:   InvalidatedTighten,
		ReopenOnReverse: true,
	}
}

// State is NONE or OPEN.
type State int

const (
	StateNone State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "OPEN"
	}
	return "NONE"
}

// Action is what OnSignal did with a signal.
type Action int

const (
	ActionOpened Action = iota
	ActionIgnored
	ActionUpdatedTakeProfit
	ActionReversed
	ActionClosed
	ActionCooldown
	ActionSkippedInvalidated
)

func (a Action) String() string {
	switch a {
	case ActionOpened:
		return "opened"
	case ActionIgnored:
		return "ignored"
	case ActionUpdatedTakeProfit:
		return "updated_take_profit"
	case ActionReversed:
		return "reversed"
	case ActionClosed:
		return "closed"
	case ActionCooldown:
		return "cooldown"
	case ActionSkippedInvalidated:
		return "skipped_invalidated"
	}
	return "unknown"
}

// Manager holds at most one open position and turns signals and prices into
// closed trades. Calls must follow tape order: for each trade, OnTrade first,
// then OnSignal for a signal fired by that trade.
type Manager struct {
	cfg           Config
	pos           *domain.Position
	closed        []domain.ClosedTrade
	cooldownUntil int64
	last          domain.TradeEvent
	hasLast       bool
}

// NewManager crea un Manager en estado NONE.
func NewManager(cfg Config) *Manager {
	if cfg.OnRepeatSignal == "" {
		cfg.OnRepeatSignal = RepeatIgnore
	}
	if cfg.OnInvalidated == "" {
		cfg.OnInvalidated = InvalidatedTighten
	}
	return &Manager{cfg: cfg}
}

// State devuelve el estado actual de la máquina.
func (m *Manager) State() State {
	if m.pos != nil {
		return StateOpen
	}
	return StateNone
}

// Position returns a copy of the open position.
func (m *Manager) Position() (domain.Position, bool) {
	if m.pos == nil {
		return domain.Position{}, false
	}
	return *m.pos, true
}

// Closed returns every trade closed so far.
func (m *Manager) Closed() []domain.ClosedTrade { return m.closed }

// OnTrade updates the best price of the open position and closes it when a
// stop, trailing stop or take-profit is crossed. Exits fill at the trade price.
func (m *Manager) OnTrade(t domain.TradeEvent) (domain.ClosedTrade, bool) {
	m.last, m.hasLast = t, true
	if m.pos == nil {
		return domain.ClosedTrade{}, false
	}

	p := m.pos
	price := t.Price
	long := p.Side == domain.SignalBuy
	if long {
		p.BestPriceSinceEntry = max(p.BestPriceSinceEntry, price)
	} else {
		p.BestPriceSinceEntry = min(p.BestPriceSinceEntry, price)
	}

	trail := m.cfg.TrailingStopPct
	var reason domain.CloseReason
	switch {
	case long && price <= p.StopLossPrice, !long && price >= p.StopLossPrice:
		reason = domain.CloseStopLoss
	case trail > 0 && long && price <= p.BestPriceSinceEntry*(1-trail),
		trail > 0 && !long && price >= p.BestPriceSinceEntry*(1+trail):
		reason = domain.CloseTrailingStop
	case long && price >= p.TakeProfitPrice, !long && price <= p.TakeProfitPrice:
		reason = domain.CloseTakeProfit
	default:
		return domain.ClosedTrade{}, false
	}
	return m.close(t.Timestamp, price, reason), true
}

// OnSignal applies a confirmed signal to the state machine.
func (m *Manager) OnSignal(sig domain.Signal) Action {
	if m.pos == nil {
		return m.open(sig, false)
	}

	if sig.Type == m.pos.Side {
		if m.cfg.OnRepeatSignal == RepeatUpdateTakeProfit {
			m.pos.TakeProfitPrice = takeProfitPrice(sig.Type, sig.Price, m.cfg.TakeProfitPct)
			return ActionUpdatedTakeProfit
		}
		return ActionIgnored
	}

	reason := domain.CloseStopLoss
	if m.pos.ReturnAt(sig.Price) > 0 {
		reason = domain.CloseTakeProfit
	}
	m.close(sig.Timestamp, sig.Price, reason)
	if !m.cfg.ReopenOnReverse {
		return ActionClosed
	}
	if a := m.open(sig, true); a != ActionOpened {
		return a
	}
	return ActionReversed
}

// Finish force-closes an open position at the last seen trade.
func (m *Manager) Finish() (domain.ClosedTrade, bool) {
	if m.pos == nil || !m.hasLast {
		return domain.ClosedTrade{}, false
	}
	return m.close(m.last.Timestamp, m.last.Price, domain.CloseEndOfData), true
}

// open abre una posición. Una reversión ignora el cooldown del cierre que
// acaba de provocar.
func (m *Manager) open(sig domain.Signal, reversal bool) Action {
	if sig.Invalidated && m.cfg.OnInvalidated == InvalidatedSkip {
		return ActionSkippedInvalidated
	}
	if !reversal && sig.Timestamp < m.cooldownUntil {
		return ActionCooldown
	}

	sl := m.cfg.StopLossPct
	if sig.Invalidated {
		sl = domain.InvalidatedStopLossPct
	}
	m.pos = &domain.Position{
		Side:                sig.Type,
		EntryPrice:          sig.Price,
		EntryTimestamp:      sig.Timestamp,
		StopLossPrice:       stopLossPrice(sig.Type, sig.Price, sl),
		TakeProfitPrice:     takeProfitPrice(sig.Type, sig.Price, m.cfg.TakeProfitPct),
		BestPriceSinceEntry: sig.Price,
		Status:              domain.PositionOpen,
		Invalidated:         sig.Invalidated,
	}
	return ActionOpened
}

func (m *Manager) close(ts int64, price float64, reason domain.CloseReason) domain.ClosedTrade {
	p := m.pos
	ts = max(ts, p.EntryTimestamp)
	p.Status = domain.PositionClosed
	ct := domain.ClosedTrade{
		Type:           p.Side,
		EntryTimestamp: p.EntryTimestamp,
		EntryPrice:     p.EntryPrice,
		ExitTimestamp:  ts,
		ExitPrice:      price,
		CloseReason:    reason,
		WasInvalidated: p.Invalidated,
	}
	m.closed = append(m.closed, ct)
	m.pos = nil
	m.cooldownUntil = ts + m.cfg.Cooldown.Milliseconds()

	slog.Debug("position closed",
		"side", ct.Type,
		"reason", reason,
		"entry", ct.EntryPrice,
		"exit", ct.ExitPrice,
		"hold_ms", ct.HoldMs(),
		"return", fmt.Sprintf("%.4f", ct.Return()),
	)
	return ct
}

func stopLossPrice(side domain.SignalType, price, pct float64) float64 {
	return price * (1 - side.Direction()*pct)
}

func takeProfitPrice(side domain.SignalType, price, pct float64) float64 {
	return price * (1 + side.Direction()*pct)
}
