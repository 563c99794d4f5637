package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
)

// SaveTrades appends a validated tape for symbol. The whole batch is
// rejected if any trade is malformed or out of order.
func (s *SQLiteStorage) SaveTrades(ctx context.Context, symbol string, trades []domain.TradeEvent) error {
	if len(trades) == 0 {
		return nil
	}
	if err := domain.ValidateSequence(trades); err != nil {
		return fmt.Errorf("storage.SaveTrades: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveTrades: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trades (symbol, ts, price, quantity, side) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveTrades: prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx, symbol, t.Timestamp, t.Price, t.Quantity, t.Side.String()); err != nil {
			return fmt.Errorf("storage.SaveTrades: insert ts=%d: %w", t.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveTrades: commit: %w", err)
	}
	return nil
}

// LoadTrades implementa ports.TradeFeed. Un from/to zero no acota ese lado.
// Ties on timestamp keep insertion order.
func (s *SQLiteStorage) LoadTrades(ctx context.Context, symbol string, from, to time.Time) ([]domain.TradeEvent, error) {
	query := `SELECT ts, price, quantity, side FROM trades WHERE symbol = ?`
	args := []any{symbol}
	if !from.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, from.UnixMilli())
	}
	if !to.IsZero() {
		query += ` AND ts < ?`
		args = append(args, to.UnixMilli())
	}
	query += ` ORDER BY ts ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeEvent
	for rows.Next() {
		var t domain.TradeEvent
		var side string
		if err := rows.Scan(&t.Timestamp, &t.Price, &t.Quantity, &side); err != nil {
			return nil, fmt.Errorf("storage.LoadTrades: scan row: %w", err)
		}
		t.Side, _ = domain.ParseSide(side) // unknown → SideUnknown, rejected below
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.LoadTrades: %w", err)
	}

	if err := domain.ValidateSequence(trades); err != nil {
		return nil, fmt.Errorf("storage.LoadTrades: %w", err)
	}
	return trades, nil
}
