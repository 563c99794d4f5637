package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/orderflow/internal/application/position"
	"github.com/alejandrodnm/orderflow/internal/domain"
	"github.com/alejandrodnm/orderflow/internal/ports"
	"github.com/alejandrodnm/orderflow/internal/strategy"
	"github.com/google/uuid"
)

const defaultEvalHorizon = 5 * time.Minute

// Config contiene la configuración del sweep.
type Config struct {
	Symbol string
	From   time.Time
	To     time.Time

	Workers     int            // goroutines for parallel runs (0 = NumCPU)
	EvalHorizon time.Duration  // look-ahead used to score signals
	BucketSize  float64        // heat-map price bucket width
	Location    *time.Location // day/night split is taken in this zone

	OnRepeatSignal  position.RepeatPolicy
	OnInvalidated   position.InvalidatedPolicy
	ReopenOnReverse bool
}

// DefaultConfig devuelve una configuración sensata.
func DefaultConfig() Config {
	return Config{
		EvalHorizon:     defaultEvalHorizon,
		BucketSize:      1.0,
		Location:        time.UTC,
		OnRepeatSignal:  position.RepeatIgnore,
		OnInvalidated:   position.InvalidatedTighten,
		ReopenOnReverse: true,
	}
}

// Engine es el orquestador del sweep: carga el tape, ejecuta cada
// ParameterSet en paralelo, puntúa la baseline y publica el reporte.
type Engine struct {
	cfg       Config
	feed      ports.TradeFeed
	sink      ports.ResultSink
	notifier  ports.Notifier
	baselines []strategy.Strategy
}

// New crea un Engine con todas las dependencias inyectadas. feed, sink y
// notifier pueden ser nil cuando sólo se usa Sweep.
func New(
	cfg Config,
	feed ports.TradeFeed,
	sink ports.ResultSink,
	notifier ports.Notifier,
	baselines ...strategy.Strategy,
) *Engine {
	if cfg.EvalHorizon <= 0 {
		cfg.EvalHorizon = defaultEvalHorizon
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{
		cfg:       cfg,
		feed:      feed,
		sink:      sink,
		notifier:  notifier,
		baselines: baselines,
	}
}

// Run loads the tape from the feed, sweeps the grid and hands the report to
// the sink and the notifier. Sink and notifier errors are logged, not
// returned: the report is still valid.
func (e *Engine) Run(ctx context.Context, grid []domain.ParameterSet) (domain.SweepReport, error) {
	if e.feed == nil {
		return domain.SweepReport{}, errors.New("sweep.Run: no trade feed configured")
	}
	trades, err := e.feed.LoadTrades(ctx, e.cfg.Symbol, e.cfg.From, e.cfg.To)
	if err != nil {
		return domain.SweepReport{}, fmt.Errorf("sweep.Run: load trades: %w", err)
	}
	slog.Info("tape loaded", "symbol", e.cfg.Symbol, "trades", len(trades))

	report, err := e.Sweep(ctx, trades, grid)
	if err != nil && !errors.Is(err, domain.ErrAllRunsFailed) {
		return report, err
	}

	if e.notifier != nil {
		if nerr := e.notifier.NotifySweep(ctx, report); nerr != nil {
			slog.Warn("notifier error", "err", nerr)
		}
	}
	if e.sink != nil {
		if serr := e.sink.SaveSweep(ctx, report); serr != nil {
			slog.Warn("storage error", "err", serr)
		}
	}
	return report, err
}

// Sweep evaluates every parameter set against the tape. The tape is
// validated first and a bad trade aborts the sweep. A failing parameter set
// is recorded in the report without stopping the others; if every set fails
// the error wraps domain.ErrAllRunsFailed.
func (e *Engine) Sweep(ctx context.Context, trades []domain.TradeEvent, grid []domain.ParameterSet) (domain.SweepReport, error) {
	report := domain.SweepReport{
		ID:        uuid.New().String(),
		Symbol:    e.cfg.Symbol,
		StartedAt: time.Now().UTC(),
		NumTrades: len(trades),
	}
	if len(grid) == 0 {
		return report, errors.New("sweep.Sweep: empty parameter grid")
	}
	if err := domain.ValidateSequence(trades); err != nil {
		return report, fmt.Errorf("sweep.Sweep: %w", err)
	}

	start := time.Now()
	t := newTape(trades, e.cfg)
	slog.Info("sweep starting",
		"id", report.ID,
		"trades", len(trades),
		"parameter_sets", len(grid),
		"workers", workerCount(e.cfg.Workers),
	)

	report.Runs = runConcurrent(ctx, t, grid, e.cfg.Workers)
	for _, run := range report.Runs {
		if !run.OK() {
			report.Failures = append(report.Failures, domain.RunFailure{
				Params: run.Params,
				Err:    run.Err.Error(),
			})
		}
	}

	for _, s := range e.baselines {
		rows, err := t.scoreBaseline(s)
		if err != nil {
			slog.Warn("baseline failed", "strategy", s.Name(), "err", err)
			continue
		}
		report.Baseline = append(report.Baseline, rows...)
	}

	report.Best = selectBest(report.Results())
	report.FinishedAt = time.Now().UTC()

	slog.Info("sweep complete",
		"id", report.ID,
		"succeeded", report.Succeeded(),
		"failed", len(report.Failures),
		"rows", len(report.Results()),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if len(report.Failures) == len(grid) {
		return report, fmt.Errorf("sweep.Sweep: %d of %d parameter sets: %w",
			len(report.Failures), len(grid), domain.ErrAllRunsFailed)
	}
	return report, nil
}

// selectBest picks, per bucket, the absorption row with the highest average
// return among rows that produced signals. Ties keep the earlier grid order.
func selectBest(rows []domain.BacktestResult) map[domain.Bucket]domain.BacktestResult {
	best := make(map[domain.Bucket]domain.BacktestResult, len(domain.Buckets))
	for _, r := range rows {
		if r.Strategy != domain.StrategyAbsorption || r.NumSignals == 0 {
			continue
		}
		cur, ok := best[r.Bucket]
		if !ok || r.AvgReturn > cur.AvgReturn {
			best[r.Bucket] = r
		}
	}
	return best
}
