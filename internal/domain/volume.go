package domain

import "math"

// VolumeBin accumulates aggressor volume at one price bucket of the heat map.
type VolumeBin struct {
	BuyVolume  float64
	SellVolume float64
	LastUpdate int64 // ms
}

// Total devuelve el volumen total del bin.
func (b VolumeBin) Total() float64 { return b.BuyVolume + b.SellVolume }

// Idle reports whether the bin has not been touched for longer than window.
func (b VolumeBin) Idle(nowMs, windowMs int64) bool {
	return nowMs-b.LastUpdate > windowMs
}

// Add registers a trade, resetting the counts first when the bin went idle.
func (b *VolumeBin) Add(t TradeEvent, windowMs int64) {
	if b.Idle(t.Timestamp, windowMs) {
		b.BuyVolume, b.SellVolume = 0, 0
	}
	if t.Side == SideBuyer {
		b.BuyVolume += t.Quantity
	} else {
		b.SellVolume += t.Quantity
	}
	b.LastUpdate = t.Timestamp
}

// BucketKey rounds a price to its heat-map bucket.
func BucketKey(price, bucketSize float64) int64 {
	if bucketSize <= 0 {
		bucketSize = 1
	}
	return int64(math.Round(price / bucketSize))
}
