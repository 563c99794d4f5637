package storage

// sqlite.go: persistencia de tapes y resultados de sweep.
//
// Estrategia:
//   - `trades`: el tape por símbolo, para no re-importar CSVs en cada sweep.
//   - `sweeps`: una fila por sweep (id uuid, rango, conteos).
//   - `results`: una fila por ParameterSet × bucket, con los parámetros
//     desnormalizados para poder filtrar con SQL plano.
//   - `failures`: los ParameterSets que fallaron y por qué.
//   - Prune automático al arrancar: sweeps > 90d (y sus filas).

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    symbol   TEXT    NOT NULL,
    ts       INTEGER NOT NULL,
    price    REAL    NOT NULL,
    quantity REAL    NOT NULL,
    side     TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS sweeps (
    id             TEXT PRIMARY KEY,
    symbol         TEXT,
    started_at     DATETIME NOT NULL,
    finished_at    DATETIME,
    num_trades     INTEGER  NOT NULL DEFAULT 0,
    parameter_sets INTEGER  NOT NULL DEFAULT 0,
    failed         INTEGER  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS results (
    sweep_id             TEXT    NOT NULL REFERENCES sweeps(id),
    strategy             TEXT    NOT NULL,
    bucket               TEXT    NOT NULL,
    absorption_window_ms INTEGER NOT NULL DEFAULT 0,
    price_range_pct      REAL    NOT NULL DEFAULT 0,
    min_large_order      REAL    NOT NULL DEFAULT 0,
    volume_window_ms     INTEGER NOT NULL DEFAULT 0,
    confirm_threshold    REAL    NOT NULL DEFAULT 0,
    stop_loss_pct        REAL    NOT NULL DEFAULT 0,
    take_profit_pct      REAL    NOT NULL DEFAULT 0,
    trailing_stop_pct    REAL    NOT NULL DEFAULT 0,
    cooldown_ms          INTEGER NOT NULL DEFAULT 0,
    num_signals          INTEGER NOT NULL DEFAULT 0,
    profitable_pct       REAL    NOT NULL DEFAULT 0,
    avg_return           REAL    NOT NULL DEFAULT 0,
    hit_rate             REAL    NOT NULL DEFAULT 0,
    loss_rate            REAL    NOT NULL DEFAULT 0,
    num_trades           INTEGER NOT NULL DEFAULT 0,
    trade_avg_return     REAL    NOT NULL DEFAULT 0,
    trade_win_rate       REAL    NOT NULL DEFAULT 0,
    is_best              INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS failures (
    sweep_id TEXT NOT NULL REFERENCES sweeps(id),
    params   TEXT NOT NULL,
    err      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol_ts ON trades(symbol, ts);
CREATE INDEX IF NOT EXISTS idx_sweeps_at        ON sweeps(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_sweep    ON results(sweep_id, bucket, avg_return DESC);
`

const retentionSweeps = 90 * 24 * time.Hour

// SQLiteStorage implementa ports.TradeFeed y ports.ResultSink usando SQLite
// (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia sweeps antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveSweep persiste la cabecera del sweep, todas sus filas de resultados
// (incluida la baseline) y los fallos, en una sola transacción.
func (s *SQLiteStorage) SaveSweep(ctx context.Context, report domain.SweepReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSweep: begin tx: %w", err)
	}
	defer tx.Rollback()

	var finished *time.Time
	if !report.FinishedAt.IsZero() {
		t := report.FinishedAt.UTC()
		finished = &t
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sweeps (id, symbol, started_at, finished_at, num_trades, parameter_sets, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Symbol, report.StartedAt.UTC(), finished,
		report.NumTrades, len(report.Runs), len(report.Failures),
	); err != nil {
		return fmt.Errorf("storage.SaveSweep: insert sweep: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results
			(sweep_id, strategy, bucket,
			 absorption_window_ms, price_range_pct, min_large_order, volume_window_ms,
			 confirm_threshold, stop_loss_pct, take_profit_pct, trailing_stop_pct, cooldown_ms,
			 num_signals, profitable_pct, avg_return, hit_rate, loss_rate,
			 num_trades, trade_avg_return, trade_win_rate, is_best)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveSweep: prepare: %w", err)
	}
	defer stmt.Close()

	rows := append(report.Results(), report.Baseline...)
	for _, r := range rows {
		best := 0
		if b, ok := report.Best[r.Bucket]; ok && b.Strategy == r.Strategy && b.Params == r.Params {
			best = 1
		}
		p := r.Params
		if _, err := stmt.ExecContext(ctx,
			report.ID, r.Strategy, string(r.Bucket),
			p.AbsorptionWindow.Milliseconds(), p.PriceRangePct, p.MinLargeOrder, p.VolumeWindow.Milliseconds(),
			p.ConfirmThreshold, p.StopLossPct, p.TakeProfitPct, p.TrailingStopPct, p.Cooldown.Milliseconds(),
			r.NumSignals, r.ProfitablePct, r.AvgReturn, r.HitRate, r.LossRate,
			r.NumTrades, r.TradeAvgReturn, r.TradeWinRate, best,
		); err != nil {
			return fmt.Errorf("storage.SaveSweep: insert result: %w", err)
		}
	}

	for _, f := range report.Failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (sweep_id, params, err) VALUES (?, ?, ?)`,
			report.ID, f.Params.Key(), f.Err,
		); err != nil {
			return fmt.Errorf("storage.SaveSweep: insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSweep: commit: %w", err)
	}
	return nil
}

// GetResults devuelve las filas de un sweep ordenadas por avg_return desc.
func (s *SQLiteStorage) GetResults(ctx context.Context, sweepID string) ([]domain.BacktestResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strategy, bucket,
		       absorption_window_ms, price_range_pct, min_large_order, volume_window_ms,
		       confirm_threshold, stop_loss_pct, take_profit_pct, trailing_stop_pct, cooldown_ms,
		       num_signals, profitable_pct, avg_return, hit_rate, loss_rate,
		       num_trades, trade_avg_return, trade_win_rate
		FROM results
		WHERE sweep_id = ?
		ORDER BY avg_return DESC, rowid ASC
	`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetResults: query: %w", err)
	}
	defer rows.Close()

	var out []domain.BacktestResult
	for rows.Next() {
		var r domain.BacktestResult
		var bucket string
		var awMs, vwMs, cdMs int64
		if err := rows.Scan(
			&r.Strategy, &bucket,
			&awMs, &r.Params.PriceRangePct, &r.Params.MinLargeOrder, &vwMs,
			&r.Params.ConfirmThreshold, &r.Params.StopLossPct, &r.Params.TakeProfitPct,
			&r.Params.TrailingStopPct, &cdMs,
			&r.NumSignals, &r.ProfitablePct, &r.AvgReturn, &r.HitRate, &r.LossRate,
			&r.NumTrades, &r.TradeAvgReturn, &r.TradeWinRate,
		); err != nil {
			return nil, fmt.Errorf("storage.GetResults: scan row: %w", err)
		}
		r.Bucket = domain.Bucket(bucket)
		r.Params.AbsorptionWindow = time.Duration(awMs) * time.Millisecond
		r.Params.VolumeWindow = time.Duration(vwMs) * time.Millisecond
		r.Params.Cooldown = time.Duration(cdMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetFailures devuelve los fallos registrados para un sweep.
func (s *SQLiteStorage) GetFailures(ctx context.Context, sweepID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT params || ': ' || err FROM failures WHERE sweep_id = ? ORDER BY rowid`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetFailures: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("storage.GetFailures: scan row: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld elimina sweeps antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionSweeps)
	s.db.ExecContext(ctx, `DELETE FROM results  WHERE sweep_id IN (SELECT id FROM sweeps WHERE started_at < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM failures WHERE sweep_id IN (SELECT id FROM sweeps WHERE started_at < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM sweeps WHERE started_at < ?`, cutoff)
}
