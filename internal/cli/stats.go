package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/repairdesk/internal/analytics"
	"github.com/iliyamo/repairdesk/internal/model"
	"github.com/iliyamo/repairdesk/internal/utils"
)

// report is everything the stats command prints.
type report struct {
	GeneratedAt       string                                `json:"generated_at"`
	Totals            model.RequestStatistics               `json:"totals"`
	AverageRepairTime float64                               `json:"average_repair_time_hours"`
	StatusShares      []analytics.StatusShare               `json:"status_distribution"`
	Devices           map[string]analytics.DeviceStatistics `json:"devices"`
	Start             string                                `json:"start,omitempty"`
	End               string                                `json:"end,omitempty"`
	Performance       analytics.PerformanceMetrics          `json:"performance"`
}

func newStatsCommand(a *app) *cobra.Command {
	var start, end string
	var asJSON, toFile bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show request analytics",
		Long:  "Show totals, average repair time, status distribution, per-device statistics and performance metrics for the optional --start/--end window (YYYY-MM-DD, inclusive).",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			now := time.Now()
			totals, err := a.requests.GetRequestStatistics(ctx)
			if err != nil {
				return err
			}
			r := report{
				GeneratedAt:       model.FormatTime(now),
				Totals:            totals,
				AverageRepairTime: a.engine.AverageRepairTime(ctx),
				StatusShares:      a.engine.StatusDistribution(ctx),
				Devices:           a.engine.StatisticsByDevice(ctx),
				Start:             start,
				End:               end,
				Performance:       a.engine.PerformanceMetrics(ctx, start, end),
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), r)
			}
			var buf bytes.Buffer
			writeReport(&buf, r)
			if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
				return err
			}
			if !toFile {
				return nil
			}
			if err := os.MkdirAll(a.cfg.ReportDir, 0o755); err != nil {
				return fmt.Errorf("create report dir: %w", err)
			}
			path := filepath.Join(a.cfg.ReportDir, utils.ReportFilename("статистика", now))
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			a.log.Info("report written", "path", path)
			fmt.Fprintf(cmd.OutOrStdout(), "report saved to %s\n", path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&start, "start", "", "window start date YYYY-MM-DD")
	f.StringVar(&end, "end", "", "window end date YYYY-MM-DD")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	f.BoolVar(&toFile, "report", false, "also save the text report to REPORT_DIR")
	cmd.MarkFlagsMutuallyExclusive("json", "report")
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeReport(w io.Writer, r report) {
	fmt.Fprintf(w, "Отчет по заявкам (%s)\n\n", r.GeneratedAt)
	fmt.Fprintf(w, "Всего заявок: %d\n", r.Totals.TotalRequests)
	fmt.Fprintf(w, "Среднее время ремонта: %.2f ч\n\n", r.AverageRepairTime)

	fmt.Fprintln(w, "Распределение по статусам:")
	for _, s := range r.StatusShares {
		fmt.Fprintf(w, "  %s: %d (%.2f%%)\n", s.Status, s.Count, s.Percentage)
	}

	fmt.Fprintln(w, "\nПо типам техники:")
	for _, device := range sortedKeys(r.Devices) {
		d := r.Devices[device]
		fmt.Fprintf(w, "  %s: всего %d, завершено %d (%.2f%%), среднее время %.2f ч, частая проблема: %s\n",
			device, d.TotalRequests, d.CompletedRequests, d.CompletionRate, d.AverageRepairTimeHours, d.MostCommonProblem)
	}

	window := "весь период"
	if r.Start != "" || r.End != "" {
		window = r.Start + " .. " + r.End
	}
	p := r.Performance
	fmt.Fprintf(w, "\nПроизводительность (%s):\n", window)
	fmt.Fprintf(w, "  Заявок: %d, в день: %.2f\n", p.TotalRequests, p.RequestsPerDay)
	fmt.Fprintf(w, "  Среднее время обработки: %.2f ч\n", p.AverageProcessingTimeHours)
	fmt.Fprintf(w, "  Стоимость запчастей: %d\n", p.TotalPartsCost)
	for _, name := range sortedKeys(p.MasterEfficiency) {
		m := p.MasterEfficiency[name]
		fmt.Fprintf(w, "  %s: %d из %d (%.2f%%)\n", name, m.Completed, m.Total, m.Efficiency)
	}
}
