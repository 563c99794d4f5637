package sweep

// concurrent.go: pool de workers para evaluar ParameterSets en paralelo.
//
// Cada run es una función pura ParameterSet × tape → RunResult con su propio
// detector y position manager; el tape y los extremos forward se comparten
// sólo en lectura. Cada worker escribe en su propio slot de results, así que
// no hace falta mutex.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// progressEvery throttles the progress log line.
const progressEvery = 2 * time.Second

func workerCount(workers int) int {
	if workers <= 0 {
		return runtime.NumCPU()
	}
	return workers
}

// runConcurrent evalúa todos los ParameterSets y devuelve un RunResult por
// cada uno, en el mismo orden que grid. Los errores nunca se propagan al
// errgroup: un run fallido no cancela a sus hermanos.
func runConcurrent(ctx context.Context, t *tape, grid []domain.ParameterSet, workers int) []domain.RunResult {
	results := make([]domain.RunResult, len(grid))
	progress := rate.NewLimiter(rate.Every(progressEvery), 1)
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(workerCount(workers))
	for i, p := range grid {
		if err := ctx.Err(); err != nil {
			results[i] = domain.RunResult{Params: p, Err: fmt.Errorf("not started: %w", err)}
			continue
		}
		g.Go(func() error {
			results[i] = runSafe(t, p)
			n := done.Add(1)
			if progress.Allow() {
				slog.Info("sweep progress", "done", n, "total", len(grid))
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runSafe aísla un run: valida los parámetros y convierte un panic en error.
func runSafe(t *tape, p domain.ParameterSet) (res domain.RunResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = domain.RunResult{Params: p, Err: fmt.Errorf("panic: %v", r)}
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			slog.Warn("parameter set failed", "params", p.Key(), "err", res.Err)
		}
	}()

	if err := p.Validate(); err != nil {
		return domain.RunResult{Params: p, Err: fmt.Errorf("invalid parameters: %w", err)}
	}
	return t.run(p)
}
