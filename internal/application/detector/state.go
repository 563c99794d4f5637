package detector

import (
	"github.com/alejandrodnm/orderflow/internal/domain"
)

// compactAfter is the number of evicted slots tolerated before the window
// slice is copied down.
const compactAfter = 1024

// DetectorState is the mutable state of one detector run: the rolling trade
// window and the price-bucket heat map. Each run owns its own value.
type DetectorState struct {
	window []domain.TradeEvent
	head   int // first live element of window
	bins   map[int64]*domain.VolumeBin
}

// NewDetectorState devuelve un estado vacío.
func NewDetectorState() *DetectorState {
	return &DetectorState{bins: make(map[int64]*domain.VolumeBin)}
}

// Reset empties the state so the value can be reused for another run.
func (s *DetectorState) Reset() {
	s.window = s.window[:0]
	s.head = 0
	clear(s.bins)
}

// Window returns the live trades, oldest first. The slice aliases internal
// storage and is only valid until the next update.
func (s *DetectorState) Window() []domain.TradeEvent {
	return s.window[s.head:]
}

// Bins devuelve el número de buckets del heat map.
func (s *DetectorState) Bins() int { return len(s.bins) }

// Bin returns a copy of the bin for a bucket key.
func (s *DetectorState) Bin(key int64) (domain.VolumeBin, bool) {
	b, ok := s.bins[key]
	if !ok {
		return domain.VolumeBin{}, false
	}
	return *b, true
}

// evict drops window entries older than cutoff.
func (s *DetectorState) evict(cutoff int64) {
	for s.head < len(s.window) && s.window[s.head].Timestamp < cutoff {
		s.head++
	}
	if s.head >= compactAfter && s.head*2 >= len(s.window) {
		n := copy(s.window, s.window[s.head:])
		s.window = s.window[:n]
		s.head = 0
	}
}

func (s *DetectorState) push(t domain.TradeEvent) {
	s.window = append(s.window, t)
}

func (s *DetectorState) bin(key int64) *domain.VolumeBin {
	b, ok := s.bins[key]
	if !ok {
		b = &domain.VolumeBin{}
		s.bins[key] = b
	}
	return b
}

// activeTotals returns the totals of non-empty bins that are still live at
// nowMs, pruning the ones that went idle.
func (s *DetectorState) activeTotals(nowMs, idleMs int64) []float64 {
	totals := make([]float64, 0, len(s.bins))
	for k, b := range s.bins {
		if b.Idle(nowMs, idleMs) {
			delete(s.bins, k)
			continue
		}
		if tot := b.Total(); tot > 0 {
			totals = append(totals, tot)
		}
	}
	return totals
}
