package domain

import (
	"errors"
	"fmt"
)

// ErrAllRunsFailed is returned by a sweep where no parameter set succeeded.
var ErrAllRunsFailed = errors.New("all parameter sets failed")

// DataValidationError reports a trade that cannot be ingested.
// Feeds abort on the first one instead of coercing the value.
type DataValidationError struct {
	Index  int // position in the tape, -1 when unknown
	Trade  TradeEvent
	Reason string
}

func (e *DataValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid trade (ts=%d): %s", e.Trade.Timestamp, e.Reason)
	}
	return fmt.Sprintf("invalid trade #%d (ts=%d): %s", e.Index, e.Trade.Timestamp, e.Reason)
}
