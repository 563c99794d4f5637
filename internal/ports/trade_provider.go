package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
)

// TradeFeed supplies the tape for one symbol in ascending timestamp order.
type TradeFeed interface {
	// LoadTrades devuelve los trades en [from, to). Un rango con zero time
	// no acota ese extremo. Devuelve *domain.DataValidationError ante el
	// primer trade inválido en lugar de corregirlo.
	LoadTrades(ctx context.Context, symbol string, from, to time.Time) ([]domain.TradeEvent, error)
}
