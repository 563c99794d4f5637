package notify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/orderflow/internal/adapters/notify"
	"github.com/alejandrodnm/orderflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRow(bucket domain.Bucket, minLarge, avg float64) domain.BacktestResult {
	return domain.BacktestResult{
		Strategy: domain.StrategyAbsorption,
		Params: domain.ParameterSet{
			AbsorptionWindow: 10 * time.Second,
			PriceRangePct:    0.001,
			MinLargeOrder:    minLarge,
			VolumeWindow:     time.Minute,
			ConfirmThreshold: 0.002,
			StopLossPct:      0.005,
			TakeProfitPct:    0.01,
		},
		Bucket:        bucket,
		NumSignals:    8,
		ProfitablePct: 0.625,
		AvgReturn:     avg,
		LossRate:      0.25,
	}
}

func makeReport() domain.SweepReport {
	day := makeRow(domain.BucketDay, 5, 0.0042)
	night := makeRow(domain.BucketNight, 10, -0.0011)
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.SweepReport{
		ID:         "3f2a9c1e-aaaa-bbbb-cccc-000000000000",
		Symbol:     "BTCUSDT",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		NumTrades:  25000,
		Runs: []domain.RunResult{
			{Params: day.Params, Results: []domain.BacktestResult{day}},
			{Params: night.Params, Results: []domain.BacktestResult{night}},
		},
		Baseline: []domain.BacktestResult{{
			Strategy: domain.StrategyMACrossover, Bucket: domain.BucketDay,
			NumSignals: 30, AvgReturn: 0.001,
		}},
		Best: map[domain.Bucket]domain.BacktestResult{domain.BucketDay: day},
	}
}

func TestConsole_NotifySweep(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, 10)

	require.NoError(t, n.NotifySweep(context.Background(), makeReport()))

	out := buf.String()
	assert.Contains(t, out, "SWEEP 3f2a9c1e")
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "25000 trades")
	assert.Contains(t, out, "+0.420%")
	assert.Contains(t, out, "-0.110%")
	assert.Contains(t, out, "62.5%")
	assert.Contains(t, out, "Best per bucket")
	assert.Contains(t, out, "(no signals)", "night has no best row")
	assert.Contains(t, out, "Baseline comparison")
	assert.Contains(t, out, domain.StrategyMACrossover)
	assert.Contains(t, out, "+0.320%", "best day minus baseline")

	// el ranking va de mayor a menor avg return
	assert.Less(t, strings.Index(out, "+0.420%"), strings.Index(out, "-0.110%"))
}

func TestConsole_NotifySweep_NoSignals(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, 0)

	report := domain.SweepReport{ID: "x", Runs: []domain.RunResult{{}}}
	require.NoError(t, n.NotifySweep(context.Background(), report))

	out := buf.String()
	assert.Contains(t, out, "no signals produced by any parameter set")
	assert.Contains(t, out, "(no symbol)")
	assert.NotContains(t, out, "Baseline comparison")
}

func TestConsole_NotifySweep_Failures(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, 1)

	report := makeReport()
	report.Failures = []domain.RunFailure{
		{Params: domain.ParameterSet{MinLargeOrder: 0}, Err: "invalid parameters: min large order must be positive"},
		{Params: domain.ParameterSet{MinLargeOrder: -1}, Err: "panic: boom"},
	}
	require.NoError(t, n.NotifySweep(context.Background(), report))

	out := buf.String()
	assert.Contains(t, out, "2 parameter sets failed")
	assert.Contains(t, out, "min large order must be positive")
	assert.Contains(t, out, "... 1 more")
	assert.NotContains(t, out, "panic: boom")
}
