package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeRatio(t *testing.T) {
	assert.Equal(t, 2.0, SafeRatio(4, 2))
	assert.Equal(t, RatioCap, SafeRatio(4, 0))
	assert.Equal(t, 0.0, SafeRatio(0, 0))
	assert.False(t, math.IsInf(SafeRatio(1e300, 1e-300), 0))
}

func TestPercentile(t *testing.T) {
	assert.True(t, math.IsNaN(Percentile(nil, 90)))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 90))
	// 1..10: pos = 0.9*9 = 8.1 → 9 + 0.1
	vals := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}
	assert.InDelta(t, 9.1, Percentile(vals, 90), 1e-12)
	assert.Equal(t, 1.0, Percentile(vals, 0))
	assert.Equal(t, 10.0, Percentile(vals, 100))
}

func TestMean(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-12)
}

func TestVolumeBin_ResetsWhenIdle(t *testing.T) {
	var b VolumeBin
	b.Add(TradeEvent{Timestamp: 1000, Quantity: 2, Side: SideBuyer}, 5000)
	b.Add(TradeEvent{Timestamp: 2000, Quantity: 1, Side: SideSeller}, 5000)
	assert.Equal(t, 3.0, b.Total())

	b.Add(TradeEvent{Timestamp: 8000, Quantity: 1, Side: SideSeller}, 5000)
	assert.Equal(t, 0.0, b.BuyVolume)
	assert.Equal(t, 1.0, b.SellVolume)
	assert.True(t, b.Idle(20000, 5000))
}

func TestBucketKey(t *testing.T) {
	assert.Equal(t, int64(100), BucketKey(100.4, 1))
	assert.Equal(t, int64(101), BucketKey(100.6, 1))
	assert.Equal(t, int64(201), BucketKey(100.6, 0.5))
	assert.Equal(t, int64(101), BucketKey(100.6, 0))
}
