package sweep

import (
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/orderflow/internal/application/detector"
	"github.com/alejandrodnm/orderflow/internal/application/position"
	"github.com/alejandrodnm/orderflow/internal/domain"
	"github.com/alejandrodnm/orderflow/internal/strategy"
)

// tape is the read-only input shared by every run of a sweep.
type tape struct {
	trades      []domain.TradeEvent
	confirm     *domain.ForwardExtrema // detector follow-through horizon
	eval        *domain.ForwardExtrema // outcome scoring horizon
	invalidator *detector.Invalidator
	cfg         Config
}

func newTape(trades []domain.TradeEvent, cfg Config) *tape {
	confirm := domain.NewForwardExtrema(trades, detector.ConfirmHorizon)
	eval := confirm
	if cfg.EvalHorizon != detector.ConfirmHorizon {
		eval = domain.NewForwardExtrema(trades, cfg.EvalHorizon)
	}
	return &tape{
		trades:      trades,
		confirm:     confirm,
		eval:        eval,
		invalidator: detector.NewInvalidator(trades),
		cfg:         cfg,
	}
}

// run replays the tape once with fresh detector and manager state.
func (t *tape) run(p domain.ParameterSet) domain.RunResult {
	det := detector.New(detector.Config{Params: p, BucketSize: t.cfg.BucketSize}, t.confirm)
	pc := position.ConfigFromParams(p)
	pc.OnRepeatSignal = t.cfg.OnRepeatSignal
	pc.OnInvalidated = t.cfg.OnInvalidated
	pc.ReopenOnReverse = t.cfg.ReopenOnReverse
	mgr := position.NewManager(pc)

	var signals []domain.Signal
	invalidated := 0
	for i, tr := range t.trades {
		mgr.OnTrade(tr)
		sig, ok := det.OnTrade(i, tr)
		if !ok {
			continue
		}
		sig = t.invalidator.Apply(sig)
		if sig.Invalidated {
			invalidated++
		}
		signals = append(signals, sig)
		mgr.OnSignal(sig)
	}
	mgr.Finish()

	rows, err := t.score(domain.StrategyAbsorption, p, signals, mgr.Closed(), p.TakeProfitPct, p.StopLossPct)
	if err != nil {
		return domain.RunResult{Params: p, Err: err}
	}

	st := det.Stats()
	slog.Debug("parameter set done",
		"params", p.Key(),
		"candidates", st.Candidates,
		"rejected_band", st.RejectedBand,
		"rejected_no_small", st.RejectedNoSmall,
		"rejected_volume", st.RejectedVolume,
		"rejected_follow", st.RejectedFollow,
		"signals", len(signals),
		"invalidated", invalidated,
		"trades", len(mgr.Closed()),
	)

	return domain.RunResult{
		Params:      p,
		Signals:     signals,
		Trades:      mgr.Closed(),
		Results:     rows,
		Invalidated: invalidated,
	}
}

// scoreBaseline scores a reference strategy's signals with the same evaluator.
func (t *tape) scoreBaseline(s strategy.Strategy) ([]domain.BacktestResult, error) {
	tp, sl := s.Exits()
	rows, err := t.score(s.Name(), domain.ParameterSet{TakeProfitPct: tp, StopLossPct: sl}, s.Signals(t.trades), nil, tp, sl)
	if err != nil {
		return nil, fmt.Errorf("sweep.scoreBaseline %s: %w", s.Name(), err)
	}
	return rows, nil
}

// score evaluates signals against the forward extrema and aggregates them
// with the closed trades per bucket. Invalidated signals are scored with the
// tightened stop-loss their position would have used. Buckets with neither
// signals nor trades produce no row.
func (t *tape) score(
	name string,
	p domain.ParameterSet,
	signals []domain.Signal,
	closed []domain.ClosedTrade,
	tp, sl float64,
) ([]domain.BacktestResult, error) {
	var batch domain.OutcomeBatch
	buckets := make([]domain.Bucket, 0, len(signals))
	for _, sig := range signals {
		ex := t.forward(sig)
		stop := sl
		if sig.Invalidated {
			stop = domain.InvalidatedStopLossPct
		}
		batch.Append(sig.Price, ex, sig.Type, tp, stop)
		buckets = append(buckets, domain.BucketOf(sig.Timestamp, t.cfg.Location))
	}

	res, err := domain.EvaluateOutcomes(batch)
	if err != nil {
		return nil, err
	}
	scores := domain.Aggregate(res, buckets)
	realized := aggregateTrades(closed, t.cfg)

	var rows []domain.BacktestResult
	for _, b := range domain.Buckets {
		s, hasSignals := scores[b]
		r, hasTrades := realized[b]
		if !hasSignals && !hasTrades {
			continue
		}
		rows = append(rows, domain.BacktestResult{
			Strategy:       name,
			Params:         p,
			Bucket:         b,
			NumSignals:     s.NumSignals,
			ProfitablePct:  s.ProfitablePct,
			AvgReturn:      s.AvgReturn,
			HitRate:        s.HitRate,
			LossRate:       s.LossRate,
			NumTrades:      r.n,
			TradeAvgReturn: r.avg,
			TradeWinRate:   r.winRate,
		})
	}
	return rows, nil
}

// forward returns the scoring window of a signal. The trade index is only
// trusted when it points at a trade with the signal's timestamp.
func (t *tape) forward(sig domain.Signal) domain.Extrema {
	if i := sig.TradeIndex; i >= 0 && i < len(t.trades) && t.trades[i].Timestamp == sig.Timestamp {
		ex, _ := t.eval.At(i)
		return ex
	}
	ex, _ := t.eval.Lookup(sig.Timestamp, t.eval.Horizon())
	return ex
}

type realizedStats struct {
	n       int
	avg     float64
	winRate float64
}

// aggregateTrades agrupa los trades cerrados por el bucket de su entrada.
func aggregateTrades(closed []domain.ClosedTrade, cfg Config) map[domain.Bucket]realizedStats {
	returns := make(map[domain.Bucket][]float64, len(domain.Buckets))
	for _, c := range closed {
		b := domain.BucketOf(c.EntryTimestamp, cfg.Location)
		returns[b] = append(returns[b], c.Return())
	}
	out := make(map[domain.Bucket]realizedStats, len(returns))
	for b, rs := range returns {
		wins := 0
		for _, r := range rs {
			if r > 0 {
				wins++
			}
		}
		out[b] = realizedStats{
			n:       len(rs),
			avg:     domain.Mean(rs),
			winRate: float64(wins) / float64(len(rs)),
		}
	}
	return out
}
