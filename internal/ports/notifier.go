package ports

import (
	"context"

	"github.com/alejandrodnm/orderflow/internal/domain"
)

// Notifier presenta el resultado de un sweep al usuario.
type Notifier interface {
	NotifySweep(ctx context.Context, report domain.SweepReport) error
}
