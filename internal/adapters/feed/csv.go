package feed

// csv.go: lee un tape desde un CSV exportado del exchange.
//
// Columnas reconocidas por header (case-insensitive):
//   - timestamp | time | ts        epoch ms, epoch s o RFC3339
//   - price
//   - quantity | qty | size | amount
//   - side (buyer/seller/buy/sell) o is_buyer_maker (true/false)
//   - symbol (opcional; si existe se filtra por él)

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
)

// Epoch values below this are read as seconds.
const msThreshold = 100_000_000_000

// CSVFeed implementa ports.TradeFeed sobre un archivo CSV.
type CSVFeed struct {
	path string
}

// NewCSVFeed crea un feed que lee de path en cada LoadTrades.
func NewCSVFeed(path string) *CSVFeed {
	return &CSVFeed{path: path}
}

// LoadTrades implementa ports.TradeFeed.
func (f *CSVFeed) LoadTrades(ctx context.Context, symbol string, from, to time.Time) ([]domain.TradeEvent, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("feed.LoadTrades: open %q: %w", f.path, err)
	}
	defer file.Close()

	trades, err := ReadTrades(ctx, file, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("feed.LoadTrades %q: %w", f.path, err)
	}
	slog.Debug("csv tape read", "path", f.path, "trades", len(trades))
	return trades, nil
}

type columns struct {
	ts, price, qty, side, buyerMaker, symbol int
}

func parseHeader(header []string) (columns, error) {
	c := columns{ts: -1, price: -1, qty: -1, side: -1, buyerMaker: -1, symbol: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "timestamp", "time", "ts":
			c.ts = i
		case "price":
			c.price = i
		case "quantity", "qty", "size", "amount":
			c.qty = i
		case "side":
			c.side = i
		case "is_buyer_maker", "isbuyermaker":
			c.buyerMaker = i
		case "symbol":
			c.symbol = i
		}
	}
	switch {
	case c.ts < 0:
		return c, errors.New("missing timestamp column")
	case c.price < 0:
		return c, errors.New("missing price column")
	case c.qty < 0:
		return c, errors.New("missing quantity column")
	case c.side < 0 && c.buyerMaker < 0:
		return c, errors.New("missing side or is_buyer_maker column")
	}
	return c, nil
}

// ReadTrades parses a CSV tape. The first malformed row aborts with a
// *domain.DataValidationError (wrapped) carrying the row's tape index.
func ReadTrades(ctx context.Context, r io.Reader, symbol string, from, to time.Time) ([]domain.TradeEvent, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	var trades []domain.TradeEvent
	for line := 2; ; line++ {
		if line%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if cols.symbol >= 0 && symbol != "" && !strings.EqualFold(rec[cols.symbol], symbol) {
			continue
		}

		t, err := parseRecord(rec, cols)
		if err != nil {
			return nil, &domain.DataValidationError{Index: len(trades), Trade: t, Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		if !from.IsZero() && t.Time().Before(from) {
			continue
		}
		if !to.IsZero() && !t.Time().Before(to) {
			continue
		}
		trades = append(trades, t)
	}

	if err := domain.ValidateSequence(trades); err != nil {
		return nil, err
	}
	return trades, nil
}

func parseRecord(rec []string, c columns) (domain.TradeEvent, error) {
	var t domain.TradeEvent
	ts, err := parseTimestamp(rec[c.ts])
	if err != nil {
		return t, err
	}
	t.Timestamp = ts

	if t.Price, err = strconv.ParseFloat(strings.TrimSpace(rec[c.price]), 64); err != nil {
		return t, fmt.Errorf("price: %w", err)
	}
	if t.Quantity, err = strconv.ParseFloat(strings.TrimSpace(rec[c.qty]), 64); err != nil {
		return t, fmt.Errorf("quantity: %w", err)
	}

	if c.side >= 0 {
		if t.Side, err = domain.ParseSide(rec[c.side]); err != nil {
			return t, err
		}
	} else {
		maker, err := strconv.ParseBool(strings.TrimSpace(rec[c.buyerMaker]))
		if err != nil {
			return t, fmt.Errorf("is_buyer_maker: %w", err)
		}
		t.Side = domain.SideFromBuyerMaker(maker)
	}
	return t, t.Validate()
}

func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < msThreshold {
			return v * 1000, nil
		}
		return v, nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if v < msThreshold {
			return int64(v * 1000), nil
		}
		return int64(v), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: not epoch or RFC3339", s)
	}
	return t.UnixMilli(), nil
}
