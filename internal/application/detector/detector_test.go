package detector_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/alejandrodnm/orderflow/internal/application/detector"
	"github.com/alejandrodnm/orderflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func params() domain.ParameterSet {
	return domain.ParameterSet{
		AbsorptionWindow: 10 * time.Second,
		PriceRangePct:    0.001,
		MinLargeOrder:    5,
		VolumeWindow:     time.Minute,
		ConfirmThreshold: 0.001,
		StopLossPct:      0.005,
		TakeProfitPct:    0.01,
	}
}

func buy(ts int64, price, qty float64) domain.TradeEvent {
	return domain.TradeEvent{Timestamp: ts, Price: price, Quantity: qty, Side: domain.SideBuyer}
}

func sell(ts int64, price, qty float64) domain.TradeEvent {
	return domain.TradeEvent{Timestamp: ts, Price: price, Quantity: qty, Side: domain.SideSeller}
}

// absorptionTape: un comprador grande en t=4s absorbido por tres vendedores
// pequeños, con un bin lejano para que el percentil no sea trivial y un
// follow-through a +0.5% fuera de la ventana de invalidación.
func absorptionTape() []domain.TradeEvent {
	return []domain.TradeEvent{
		buy(500, 105, 1),
		sell(1000, 100.00, 0.1),
		sell(2000, 100.02, 0.1),
		sell(3000, 99.98, 0.1),
		buy(4000, 100.00, 10),
		buy(30_000, 100.5, 0.2),
	}
}

func replay(t *testing.T, trades []domain.TradeEvent, p domain.ParameterSet) ([]domain.Signal, *detector.Detector) {
	t.Helper()
	require.NoError(t, domain.ValidateSequence(trades))
	oracle := domain.NewForwardExtrema(trades, detector.ConfirmHorizon)
	inv := detector.NewInvalidator(trades)
	d := detector.New(detector.Config{Params: p, BucketSize: 1}, oracle)

	var signals []domain.Signal
	for i, tr := range trades {
		if sig, ok := d.OnTrade(i, tr); ok {
			signals = append(signals, inv.Apply(sig))
		}
	}
	return signals, d
}

func TestDetector_SellAbsorptionSignal(t *testing.T) {
	signals, d := replay(t, absorptionTape(), params())

	require.Len(t, signals, 1)
	sig := signals[0]
	assert.Equal(t, int64(4000), sig.Timestamp)
	assert.Equal(t, domain.LabelSellAbsorption, sig.Label)
	assert.Equal(t, domain.SignalBuy, sig.Type)
	assert.Equal(t, 100.0, sig.Price)
	assert.Equal(t, 10.0, sig.TriggerQty)
	assert.Equal(t, 4, sig.TradeIndex)
	assert.InDelta(t, 10.3, sig.BucketVolume, 1e-9)
	assert.InDelta(t, 10/0.3, sig.ImbalanceRatio, 1e-9)
	assert.False(t, sig.Invalidated)

	st := d.Stats()
	assert.Equal(t, 6, st.Trades)
	assert.Equal(t, 1, st.Candidates)
	assert.Equal(t, 1, st.Emitted)
}

func TestDetector_BuyAbsorptionMirrors(t *testing.T) {
	trades := []domain.TradeEvent{
		sell(500, 105, 1),
		buy(1000, 100.00, 0.1),
		buy(2000, 100.02, 0.2),
		sell(4000, 100.00, 8),
		sell(30_000, 99.5, 0.3),
	}
	signals, _ := replay(t, trades, params())

	require.Len(t, signals, 1)
	assert.Equal(t, domain.LabelBuyAbsorption, signals[0].Label)
	assert.Equal(t, domain.SignalSell, signals[0].Type)
}

func TestDetector_OpposingTradeOutsideBandVetoes(t *testing.T) {
	trades := absorptionTape()
	// vendedor a 101: fuera de ±0.1% de 100
	trades = append(trades[:4], append([]domain.TradeEvent{sell(3500, 101, 0.1)}, trades[4:]...)...)

	signals, d := replay(t, trades, params())
	assert.Empty(t, signals)
	assert.Equal(t, 1, d.Stats().RejectedBand)
}

func TestDetector_NoSmallOpposingTrade(t *testing.T) {
	trades := []domain.TradeEvent{
		sell(1000, 100.00, 1),
		sell(2000, 100.02, 2),
		buy(4000, 100.00, 10),
		buy(30_000, 100.5, 0.2),
	}
	signals, d := replay(t, trades, params())
	assert.Empty(t, signals)
	assert.Equal(t, 1, d.Stats().RejectedNoSmall)
}

func TestDetector_NoFollowThrough(t *testing.T) {
	trades := absorptionTape()
	trades[len(trades)-1] = buy(30_000, 100.05, 0.2) // +0.05% < 0.1%

	signals, d := replay(t, trades, params())
	assert.Empty(t, signals)
	assert.Equal(t, 1, d.Stats().RejectedFollow)
}

func TestDetector_NoForwardData(t *testing.T) {
	trades := absorptionTape()[:5]
	signals, d := replay(t, trades, params())
	assert.Empty(t, signals)
	assert.Equal(t, 1, d.Stats().RejectedFollow)
}

func TestDetector_BucketBelowPercentile(t *testing.T) {
	trades := absorptionTape()
	// un bin mucho más pesado sube el p90 por encima del bucket del candidato
	trades[0] = buy(500, 105, 100)

	signals, d := replay(t, trades, params())
	assert.Empty(t, signals)
	assert.Equal(t, 1, d.Stats().RejectedVolume)
}

func TestDetector_OutlierLeavesWindow(t *testing.T) {
	trades := []domain.TradeEvent{
		sell(0, 101, 0.1), // fuera de banda, pero expira antes del candidato
		sell(19_000, 100.00, 0.1),
		buy(20_000, 100.00, 10),
		buy(40_000, 100.5, 0.2),
	}
	signals, d := replay(t, trades, params())
	require.Len(t, signals, 1)
	assert.Equal(t, int64(20_000), signals[0].Timestamp)
	assert.Zero(t, d.Stats().RejectedBand)
}

func TestDetector_WindowNeverOlderThanAbsorptionWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := params()
	d := detector.New(detector.Config{Params: p}, nil)

	ts := int64(0)
	for i := 0; i < 5000; i++ {
		ts += int64(rng.Intn(400))
		side := domain.SideBuyer
		if rng.Intn(2) == 0 {
			side = domain.SideSeller
		}
		tr := domain.TradeEvent{Timestamp: ts, Price: 100 + rng.Float64(), Quantity: rng.Float64() * 8, Side: side}
		_, ok := d.OnTrade(i, tr)
		assert.False(t, ok, "no oracle, no signal")

		w := d.State().Window()
		require.NotEmpty(t, w)
		assert.Equal(t, ts, w[len(w)-1].Timestamp)
		assert.GreaterOrEqual(t, w[0].Timestamp, ts-p.AbsorptionWindow.Milliseconds())
	}
}

func TestDetector_Reset(t *testing.T) {
	trades := absorptionTape()
	_, d := replay(t, trades, params())
	require.NotZero(t, d.State().Bins())

	d.Reset()
	assert.Empty(t, d.State().Window())
	assert.Zero(t, d.State().Bins())
	assert.Zero(t, d.Stats().Trades)
}

func TestDetectorState_BinResetsAfterIdle(t *testing.T) {
	p := params()
	d := detector.New(detector.Config{Params: p}, nil)
	d.OnTrade(0, buy(0, 100, 3))
	d.OnTrade(1, sell(1000, 100, 1))

	b, ok := d.State().Bin(100)
	require.True(t, ok)
	assert.Equal(t, 4.0, b.Total())

	// más de VolumeWindow sin tocar el bin
	d.OnTrade(2, buy(62_000, 100, 2))
	b, _ = d.State().Bin(100)
	assert.Equal(t, 2.0, b.Total())
	assert.Zero(t, b.SellVolume)
}
