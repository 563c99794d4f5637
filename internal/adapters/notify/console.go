package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
	"github.com/olekukonko/tablewriter"
)

const defaultTopN = 15

// Console implementa ports.Notifier.
type Console struct {
	out  io.Writer
	topN int
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(topN int) *Console {
	return NewConsoleWriter(os.Stdout, topN)
}

// NewConsoleWriter crea un notificador sobre cualquier writer (tests).
func NewConsoleWriter(w io.Writer, topN int) *Console {
	if topN <= 0 {
		topN = defaultTopN
	}
	return &Console{out: w, topN: topN}
}

// NotifySweep imprime el ranking, el mejor set por bucket, la baseline y los
// fallos del sweep.
func (c *Console) NotifySweep(_ context.Context, report domain.SweepReport) error {
	dur := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(c.out, "\n=== SWEEP %s | %s, %d trades, %d sets (%d ok, %d failed) in %s ===\n",
		shortID(report.ID), symbolLabel(report.Symbol), report.NumTrades,
		len(report.Runs), report.Succeeded(), len(report.Failures), dur)

	rows := report.Results()
	if len(rows) == 0 {
		fmt.Fprintln(c.out, "  no signals produced by any parameter set")
	} else {
		c.printRanking(rows)
		c.printBest(report.Best)
	}

	if len(report.Baseline) > 0 {
		c.printBaseline(report.Baseline, report.Best)
	}
	if len(report.Failures) > 0 {
		c.printFailures(report.Failures)
	}
	return nil
}

// printRanking imprime las topN filas por avg return.
func (c *Console) printRanking(rows []domain.BacktestResult) {
	ranked := make([]domain.BacktestResult, len(rows))
	copy(ranked, rows)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AvgReturn > ranked[j].AvgReturn
	})
	if len(ranked) > c.topN {
		ranked = ranked[:c.topN]
	}

	fmt.Fprintf(c.out, "\nTop %d by avg return\n", len(ranked))
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Bucket", "Params", "Signals", "Profit%", "AvgRet", "Loss%", "Trades", "TradeRet", "Win%")
	for i, r := range ranked {
		table.Append(
			fmt.Sprintf("%d", i+1),
			string(r.Bucket),
			paramsLabel(r.Params),
			fmt.Sprintf("%d", r.NumSignals),
			pctLabel(r.ProfitablePct),
			retLabel(r.AvgReturn),
			pctLabel(r.LossRate),
			fmt.Sprintf("%d", r.NumTrades),
			retLabel(r.TradeAvgReturn),
			pctLabel(r.TradeWinRate),
		)
	}
	table.Render()
	fmt.Fprintln(c.out, "  aw=absorption window  pr=price range  lo=min large order  vw=volume window")
	fmt.Fprintln(c.out, "  ct=confirm threshold  sl/tp=stop/take  ts=trailing stop  cd=cooldown")
}

func (c *Console) printBest(best map[domain.Bucket]domain.BacktestResult) {
	fmt.Fprintln(c.out, "\nBest per bucket")
	for _, b := range domain.Buckets {
		r, ok := best[b]
		if !ok {
			fmt.Fprintf(c.out, "  %-5s  (no signals)\n", b)
			continue
		}
		fmt.Fprintf(c.out, "  %-5s  avg %s  profit %s  n=%d  %s\n",
			b, retLabel(r.AvgReturn), pctLabel(r.ProfitablePct), r.NumSignals, r.Params.Key())
	}
}

// printBaseline compara la baseline con el mejor set de absorción.
func (c *Console) printBaseline(rows []domain.BacktestResult, best map[domain.Bucket]domain.BacktestResult) {
	fmt.Fprintln(c.out, "\nBaseline comparison")
	table := tablewriter.NewWriter(c.out)
	table.Header("Strategy", "Bucket", "Signals", "Profit%", "AvgRet", "Loss%", "vs best")
	for _, r := range rows {
		delta := "-"
		if b, ok := best[r.Bucket]; ok {
			delta = retLabel(b.AvgReturn - r.AvgReturn)
		}
		table.Append(
			r.Strategy,
			string(r.Bucket),
			fmt.Sprintf("%d", r.NumSignals),
			pctLabel(r.ProfitablePct),
			retLabel(r.AvgReturn),
			pctLabel(r.LossRate),
			delta,
		)
	}
	table.Render()
}

func (c *Console) printFailures(failures []domain.RunFailure) {
	fmt.Fprintf(c.out, "\n%d parameter sets failed\n", len(failures))
	for i, f := range failures {
		if i >= c.topN {
			fmt.Fprintf(c.out, "  ... %d more\n", len(failures)-i)
			break
		}
		fmt.Fprintf(c.out, "  %s: %s\n", f.Params.Key(), f.Err)
	}
}

// paramsLabel es la versión compacta de ParameterSet.Key para la tabla.
func paramsLabel(p domain.ParameterSet) string {
	parts := []string{
		"aw=" + p.AbsorptionWindow.String(),
		fmt.Sprintf("pr=%g", p.PriceRangePct),
		fmt.Sprintf("lo=%g", p.MinLargeOrder),
		"vw=" + p.VolumeWindow.String(),
		fmt.Sprintf("ct=%g", p.ConfirmThreshold),
		fmt.Sprintf("sl=%g", p.StopLossPct),
		fmt.Sprintf("tp=%g", p.TakeProfitPct),
	}
	if p.TrailingStopPct > 0 {
		parts = append(parts, fmt.Sprintf("ts=%g", p.TrailingStopPct))
	}
	if p.Cooldown > 0 {
		parts = append(parts, "cd="+p.Cooldown.String())
	}
	return strings.Join(parts, " ")
}

func pctLabel(v float64) string { return fmt.Sprintf("%.1f%%", v*100) }

func retLabel(v float64) string { return fmt.Sprintf("%+.3f%%", v*100) }

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func symbolLabel(s string) string {
	if s == "" {
		return "(no symbol)"
	}
	return s
}
