package ports

import (
	"context"

	"github.com/alejandrodnm/orderflow/internal/domain"
)

// ResultSink persiste los resultados de un sweep.
type ResultSink interface {
	// SaveSweep stores the report header, every result row and the failures.
	SaveSweep(ctx context.Context, report domain.SweepReport) error
}
