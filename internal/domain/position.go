package domain

// PositionStatus is the lifecycle of a simulated position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// CloseReason explains why a position was closed.
type CloseReason string

const (
	CloseTakeProfit   CloseReason = "take_profit"
	CloseStopLoss     CloseReason = "stop_loss"
	CloseTrailingStop CloseReason = "trailing_stop"
	CloseEndOfData    CloseReason = "end_of_data"
)

// InvalidatedStopLossPct is the stop-loss applied to positions opened from an
// invalidated signal, replacing the configured one.
const InvalidatedStopLossPct = 0.001

// Position is the single open position of a run.
type Position struct {
	Side                SignalType
	EntryPrice          float64
	EntryTimestamp      int64
	StopLossPrice       float64
	TakeProfitPrice     float64
	BestPriceSinceEntry float64
	Status              PositionStatus
	Invalidated         bool
}

// ReturnAt devuelve el retorno fraccional si se cerrara a price.
func (p Position) ReturnAt(price float64) float64 {
	return PriceReturn(p.Side, p.EntryPrice, price)
}

// ClosedTrade is the record produced for every closed position.
type ClosedTrade struct {
	Type           SignalType
	EntryTimestamp int64
	EntryPrice     float64
	ExitTimestamp  int64
	ExitPrice      float64
	CloseReason    CloseReason
	WasInvalidated bool
}

// Return is the fractional P&L of the trade, sign-adjusted for shorts.
func (c ClosedTrade) Return() float64 {
	return PriceReturn(c.Type, c.EntryPrice, c.ExitPrice)
}

// HoldMs is how long the position was open.
func (c ClosedTrade) HoldMs() int64 {
	return c.ExitTimestamp - c.EntryTimestamp
}

// PriceReturn is (exit-entry)/entry for longs and the negation for shorts.
func PriceReturn(side SignalType, entry, exit float64) float64 {
	if entry <= 0 {
		return 0
	}
	return side.Direction() * (exit - entry) / entry
}
