package ports

import (
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
)

// ForwardOracle returns the max/min trade price over (ts, ts+horizon].
type ForwardOracle interface {
	Lookup(ts int64, horizon time.Duration) (domain.Extrema, bool)
}
