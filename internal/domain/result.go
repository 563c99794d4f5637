package domain

import "time"

// Strategy names used in results.
const (
	StrategyAbsorption  = "absorption"
	StrategyMACrossover = "ma_crossover"
)

// BacktestResult is one row of the sweep: a parameter set scored over one
// timeframe bucket.
type BacktestResult struct {
	Strategy string
	Params   ParameterSet
	Bucket   Bucket

	// Signal scores from the outcome evaluator.
	NumSignals    int
	ProfitablePct float64
	AvgReturn     float64
	HitRate       float64
	LossRate      float64

	// Realized stats of the simulated positions closed in this bucket
	// (bucketed by entry time).
	NumTrades      int
	TradeAvgReturn float64
	TradeWinRate   float64
}

// RunResult is the outcome of one parameter set. Err is set when the run
// failed; Results is then empty.
type RunResult struct {
	Params      ParameterSet
	Signals     []Signal
	Trades      []ClosedTrade
	Results     []BacktestResult
	Invalidated int
	Duration    time.Duration
	Err         error
}

// OK reports whether the run succeeded.
func (r RunResult) OK() bool { return r.Err == nil }

// RunFailure records a failed parameter set next to its parameters.
type RunFailure struct {
	Params ParameterSet
	Err    string
}

// SweepReport is everything a sweep produced.
type SweepReport struct {
	ID         string
	Symbol     string
	StartedAt  time.Time
	FinishedAt time.Time
	NumTrades  int
	Runs       []RunResult
	Baseline   []BacktestResult
	Best       map[Bucket]BacktestResult
	Failures   []RunFailure
}

// Results flattens the successful runs' rows.
func (r SweepReport) Results() []BacktestResult {
	var out []BacktestResult
	for _, run := range r.Runs {
		out = append(out, run.Results...)
	}
	return out
}

// Succeeded cuenta las ejecuciones sin error.
func (r SweepReport) Succeeded() int {
	n := 0
	for _, run := range r.Runs {
		if run.OK() {
			n++
		}
	}
	return n
}
