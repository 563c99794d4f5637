package position_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/orderflow/internal/application/position"
	"github.com/alejandrodnm/orderflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cfg() position.Config {
	return position.Config{
		StopLossPct:     0.005,
		TakeProfitPct:   0.01,
		OnRepeatSignal:  position.RepeatIgnore,
		OnInvalidated:   position.InvalidatedTighten,
		ReopenOnReverse: true,
	}
}

func tick(ts int64, price float64) domain.TradeEvent {
	return domain.TradeEvent{Timestamp: ts, Price: price, Quantity: 1, Side: domain.SideBuyer}
}

func signal(typ domain.SignalType, ts int64, price float64) domain.Signal {
	return domain.Signal{Type: typ, Timestamp: ts, Price: price, TradeIndex: -1}
}

func TestManager_OpenAndTakeProfit(t *testing.T) {
	m := position.NewManager(cfg())
	m.OnTrade(tick(1000, 100))
	require.Equal(t, position.ActionOpened, m.OnSignal(signal(domain.SignalBuy, 1000, 100)))
	require.Equal(t, position.StateOpen, m.State())

	pos, ok := m.Position()
	require.True(t, ok)
	assert.InDelta(t, 99.5, pos.StopLossPrice, 1e-9)
	assert.InDelta(t, 101, pos.TakeProfitPrice, 1e-9)

	_, closed := m.OnTrade(tick(2000, 100.5))
	assert.False(t, closed)

	ct, closed := m.OnTrade(tick(3000, 101.2))
	require.True(t, closed)
	assert.Equal(t, domain.CloseTakeProfit, ct.CloseReason)
	assert.Equal(t, 101.2, ct.ExitPrice)
	assert.InDelta(t, 0.012, ct.Return(), 1e-9)
	assert.Equal(t, position.StateNone, m.State())
}

func TestManager_ShortStopLoss(t *testing.T) {
	m := position.NewManager(cfg())
	m.OnSignal(signal(domain.SignalSell, 1000, 100))

	ct, closed := m.OnTrade(tick(2000, 100.6))
	require.True(t, closed)
	assert.Equal(t, domain.CloseStopLoss, ct.CloseReason)
	assert.Less(t, ct.Return(), 0.0)
}

func TestManager_TrailingStop(t *testing.T) {
	c := cfg()
	c.TrailingStopPct = 0.003
	c.TakeProfitPct = 0.05
	m := position.NewManager(c)
	m.OnSignal(signal(domain.SignalBuy, 1000, 100))

	_, closed := m.OnTrade(tick(2000, 102))
	require.False(t, closed)
	pos, _ := m.Position()
	assert.Equal(t, 102.0, pos.BestPriceSinceEntry)

	ct, closed := m.OnTrade(tick(3000, 101.6)) // < 102×0.997
	require.True(t, closed)
	assert.Equal(t, domain.CloseTrailingStop, ct.CloseReason)
	assert.Greater(t, ct.Return(), 0.0)
}

func TestManager_RepeatSignalIgnored(t *testing.T) {
	m := position.NewManager(cfg())
	m.OnSignal(signal(domain.SignalBuy, 1000, 100))
	assert.Equal(t, position.ActionIgnored, m.OnSignal(signal(domain.SignalBuy, 2000, 100.4)))

	pos, _ := m.Position()
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.InDelta(t, 101, pos.TakeProfitPrice, 1e-9)
}

func TestManager_RepeatSignalUpdatesTakeProfit(t *testing.T) {
	c := cfg()
	c.OnRepeatSignal = position.RepeatUpdateTakeProfit
	m := position.NewManager(c)
	m.OnSignal(signal(domain.SignalBuy, 1000, 100))
	assert.Equal(t, position.ActionUpdatedTakeProfit, m.OnSignal(signal(domain.SignalBuy, 2000, 100.4)))

	pos, _ := m.Position()
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.InDelta(t, 101.404, pos.TakeProfitPrice, 1e-9)
}

func TestManager_ReverseClosesAndReopens(t *testing.T) {
	m := position.NewManager(cfg())
	m.OnSignal(signal(domain.SignalBuy, 1000, 100))
	m.OnTrade(tick(2000, 100.3))

	assert.Equal(t, position.ActionReversed, m.OnSignal(signal(domain.SignalSell, 2000, 100.3)))
	require.Len(t, m.Closed(), 1)
	assert.Equal(t, domain.CloseTakeProfit, m.Closed()[0].CloseReason)

	pos, ok := m.Position()
	require.True(t, ok)
	assert.Equal(t, domain.SignalSell, pos.Side)
	assert.Equal(t, 100.3, pos.EntryPrice)
}

func TestManager_ReverseAtLossWithoutReopen(t *testing.T) {
	c := cfg()
	c.ReopenOnReverse = false
	m := position.NewManager(c)
	m.OnSignal(signal(domain.SignalBuy, 1000, 100))

	assert.Equal(t, position.ActionClosed, m.OnSignal(signal(domain.SignalSell, 2000, 99.8)))
	require.Len(t, m.Closed(), 1)
	assert.Equal(t, domain.CloseStopLoss, m.Closed()[0].CloseReason)
	assert.Equal(t, position.StateNone, m.State())
}

func TestManager_Cooldown(t *testing.T) {
	c := cfg()
	c.Cooldown = 10 * time.Second
	m := position.NewManager(c)
	m.OnSignal(signal(domain.SignalBuy, 1000, 100))
	_, closed := m.OnTrade(tick(2000, 101.5))
	require.True(t, closed)

	assert.Equal(t, position.ActionCooldown, m.OnSignal(signal(domain.SignalBuy, 5000, 101)))
	assert.Equal(t, position.StateNone, m.State())
	assert.Equal(t, position.ActionOpened, m.OnSignal(signal(domain.SignalBuy, 12_000, 101)))
}

func TestManager_InvalidatedTightensStop(t *testing.T) {
	m := position.NewManager(cfg())
	sig := signal(domain.SignalBuy, 1000, 100)
	sig.Invalidated = true
	m.OnSignal(sig)

	pos, _ := m.Position()
	assert.InDelta(t, 99.9, pos.StopLossPrice, 1e-9)
	assert.True(t, pos.Invalidated)

	ct, closed := m.OnTrade(tick(2000, 99.85))
	require.True(t, closed)
	assert.Equal(t, domain.CloseStopLoss, ct.CloseReason)
	assert.True(t, ct.WasInvalidated)
}

func TestManager_InvalidatedSkip(t *testing.T) {
	c := cfg()
	c.OnInvalidated = position.InvalidatedSkip
	m := position.NewManager(c)
	sig := signal(domain.SignalBuy, 1000, 100)
	sig.Invalidated = true
	assert.Equal(t, position.ActionSkippedInvalidated, m.OnSignal(sig))
	assert.Equal(t, position.StateNone, m.State())
}

func TestManager_FinishClosesAtLastTrade(t *testing.T) {
	m := position.NewManager(cfg())
	_, ok := m.Finish()
	assert.False(t, ok)

	m.OnTrade(tick(1000, 100))
	m.OnSignal(signal(domain.SignalBuy, 1000, 100))
	m.OnTrade(tick(5000, 100.2))

	ct, ok := m.Finish()
	require.True(t, ok)
	assert.Equal(t, domain.CloseEndOfData, ct.CloseReason)
	assert.Equal(t, int64(5000), ct.ExitTimestamp)
	assert.Equal(t, 100.2, ct.ExitPrice)
}

// Invariantes: nunca más de una posición abierta y exit ≥ entry.
func TestManager_SinglePositionInvariant(t *testing.T) {
	c := cfg()
	c.TrailingStopPct = 0.002
	c.Cooldown = 3 * time.Second
	m := position.NewManager(c)

	price := 100.0
	for i := 0; i < 2000; i++ {
		ts := int64(i * 500)
		price += float64(i%7-3) * 0.05
		m.OnTrade(tick(ts, price))
		if i%13 == 0 {
			typ := domain.SignalBuy
			if i%26 == 0 {
				typ = domain.SignalSell
			}
			m.OnSignal(signal(typ, ts, price))
		}
		open := 0
		if _, ok := m.Position(); ok {
			open = 1
		}
		require.LessOrEqual(t, open, 1)
	}
	m.Finish()

	require.NotEmpty(t, m.Closed())
	for _, ct := range m.Closed() {
		assert.GreaterOrEqual(t, ct.ExitTimestamp, ct.EntryTimestamp)
	}
	assert.Equal(t, position.StateNone, m.State())
}

func TestParsePolicies(t *testing.T) {
	p, err := position.ParseRepeatPolicy("")
	require.NoError(t, err)
	assert.Equal(t, position.RepeatIgnore, p)
	p, err = position.ParseRepeatPolicy("Update_Take_Profit")
	require.NoError(t, err)
	assert.Equal(t, position.RepeatUpdateTakeProfit, p)
	_, err = position.ParseRepeatPolicy("double_down")
	assert.Error(t, err)

	ip, err := position.ParseInvalidatedPolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, position.InvalidatedSkip, ip)
	_, err = position.ParseInvalidatedPolicy("ignore")
	assert.Error(t, err)
}
