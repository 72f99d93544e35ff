// Package analytics derives read-only metrics from the request history.
//
// None of the operations return an error.  When a query fails the fault is
// logged and the documented zero value is returned.  A stored timestamp
// that cannot be parsed drops only the affected request from the
// computation that needed it.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/iliyamo/repairdesk/internal/cache"
	"github.com/iliyamo/repairdesk/internal/logger"
	"github.com/iliyamo/repairdesk/internal/model"
	"github.com/iliyamo/repairdesk/internal/utils"
)

// NoProblemData is reported as the most common problem of a device group
// with no problems recorded.
const NoProblemData = "Нет данных"

// PartsUnitPrice is the notional price of one character of a comment's
// parts_ordered text.  Parts cost is a rough proxy, not a money amount.
const PartsUnitPrice = 10

// RequestSource is the read side of the request repository.
type RequestSource interface {
	RepairWindows(ctx context.Context, from, to string) ([]model.RepairWindow, error)
	StatusCounts(ctx context.Context) ([]model.StatusCount, error)
	CountRequests(ctx context.Context) (int, error)
}

// PartsSource reports the total length of ordered-parts text.
type PartsSource interface {
	PartsTextLength(ctx context.Context) (int64, error)
}

// DeviceStatistics summarizes one device type.
type DeviceStatistics struct {
	TotalRequests          int     `json:"total_requests"`
	CompletedRequests      int     `json:"completed_requests"`
	AverageRepairTimeHours float64 `json:"average_repair_time_hours"`
	MostCommonProblem      string  `json:"most_common_problem"`
	CompletionRate         float64 `json:"completion_rate"`
}

// StatusShare is one entry of the status distribution.
type StatusShare struct {
	Status     string  `json:"status"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// MasterEfficiency counts the requests assigned to a master and how many of
// them reached Completed.
type MasterEfficiency struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Efficiency float64 `json:"efficiency"`
}

// PerformanceMetrics is the result of Engine.PerformanceMetrics.
//
// RequestsPerDay is normalized by the window length only when both bounds
// are given; otherwise it equals TotalRequests.
type PerformanceMetrics struct {
	TotalRequests              int                         `json:"total_requests"`
	RequestsPerDay             float64                     `json:"requests_per_day"`
	AverageProcessingTimeHours float64                     `json:"average_processing_time_hours"`
	MasterEfficiency           map[string]MasterEfficiency `json:"master_efficiency"`
	TotalPartsCost             int64                       `json:"total_parts_cost"`
}

func emptyPerformance() PerformanceMetrics {
	return PerformanceMetrics{MasterEfficiency: map[string]MasterEfficiency{}}
}

// Engine computes metrics over a RequestSource.  Results are cached when a
// cache is configured.
type Engine struct {
	requests RequestSource
	parts    PartsSource
	cache    *cache.Cache
	log      *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCache enables result caching.  A nil cache disables it.
func WithCache(c *cache.Cache) Option { return func(e *Engine) { e.cache = c } }

// WithLogger sets the logger faults are reported to.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// NewEngine returns an Engine reading from requests and parts.
func NewEngine(requests RequestSource, parts PartsSource, opts ...Option) *Engine {
	e := &Engine{requests: requests, parts: parts, log: logger.WithComponent("analytics")}
	for _, fn := range opts {
		fn(e)
	}
	return e
}

// cached returns the cached value for key or computes it.  Only results
// computed without a fault are stored.
func cached[T any](ctx context.Context, e *Engine, key string, compute func() (T, bool)) T {
	var v T
	if e.cache.Get(ctx, key, &v) {
		return v
	}
	v, ok := compute()
	if ok {
		e.cache.Set(ctx, key, v)
	}
	return v
}

// repairHours returns the hours between creation and completion of w.  ok
// is false when w has no completion date or either timestamp is malformed;
// malformed values are logged.
func (e *Engine) repairHours(w model.RepairWindow) (float64, bool) {
	if w.CompletionDate == nil {
		return 0, false
	}
	created, err := model.ParseTime(w.CreatedDate)
	if err != nil {
		e.log.Warn("skipping request with malformed created_date", "value", w.CreatedDate, "error", err)
		return 0, false
	}
	completed, err := model.ParseTime(*w.CompletionDate)
	if err != nil {
		e.log.Warn("skipping request with malformed completion_date", "value", *w.CompletionDate, "error", err)
		return 0, false
	}
	return completed.Sub(created).Hours(), true
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return utils.Round2(float64(part) / float64(total) * 100)
}

// AverageRepairTime returns the mean number of hours between creation and
// completion over every request with a completion date, rounded to two
// decimals.  It is 0 when no request has been completed.
func (e *Engine) AverageRepairTime(ctx context.Context) float64 {
	return cached(ctx, e, "average_repair_time", func() (float64, bool) {
		windows, err := e.requests.RepairWindows(ctx, "", "")
		if err != nil {
			e.log.Error("average repair time failed", "error", err)
			return 0, false
		}
		var hours []float64
		for _, w := range windows {
			if h, ok := e.repairHours(w); ok {
				hours = append(hours, h)
			}
		}
		return utils.Round2(mean(hours)), true
	})
}

// StatisticsByDevice groups requests by device type.  Only requests whose
// status is exactly Completed and that have a completion date count as
// completed; ReadyForPickup does not.  The most common problem is the
// problem description seen most often in the group, the earliest one
// winning ties.
func (e *Engine) StatisticsByDevice(ctx context.Context) map[string]DeviceStatistics {
	return cached(ctx, e, "statistics_by_device", func() (map[string]DeviceStatistics, bool) {
		windows, err := e.requests.RepairWindows(ctx, "", "")
		if err != nil {
			e.log.Error("device statistics failed", "error", err)
			return map[string]DeviceStatistics{}, false
		}

		type group struct {
			total       int
			repairHours []float64
			problems    map[string]int
			order       []string
		}
		groups := map[string]*group{}
		for _, w := range windows {
			g, ok := groups[w.DeviceType]
			if !ok {
				g = &group{problems: map[string]int{}}
				groups[w.DeviceType] = g
			}
			g.total++
			if _, seen := g.problems[w.ProblemDescription]; !seen {
				g.order = append(g.order, w.ProblemDescription)
			}
			g.problems[w.ProblemDescription]++

			if w.Status == model.StatusCompleted {
				if h, ok := e.repairHours(w); ok {
					g.repairHours = append(g.repairHours, h)
				}
			}
		}

		out := make(map[string]DeviceStatistics, len(groups))
		for device, g := range groups {
			common, best := NoProblemData, 0
			for _, p := range g.order {
				if n := g.problems[p]; n > best {
					common, best = p, n
				}
			}
			completed := len(g.repairHours)
			out[device] = DeviceStatistics{
				TotalRequests:          g.total,
				CompletedRequests:      completed,
				AverageRepairTimeHours: utils.Round2(mean(g.repairHours)),
				MostCommonProblem:      common,
				CompletionRate:         percent(completed, g.total),
			}
		}
		return out, true
	})
}

// StatusDistribution returns each status with its count and share of all
// requests, largest first.  Equal counts are ordered by lifecycle position,
// then by label for statuses outside the lifecycle.  The result is empty
// when there are no requests.
func (e *Engine) StatusDistribution(ctx context.Context) []StatusShare {
	return cached(ctx, e, "status_distribution", func() ([]StatusShare, bool) {
		total, err := e.requests.CountRequests(ctx)
		if err != nil {
			e.log.Error("status distribution failed", "error", err)
			return []StatusShare{}, false
		}
		if total == 0 {
			return []StatusShare{}, true
		}
		counts, err := e.requests.StatusCounts(ctx)
		if err != nil {
			e.log.Error("status distribution failed", "error", err)
			return []StatusShare{}, false
		}

		out := make([]StatusShare, 0, len(counts))
		for _, c := range counts {
			out = append(out, StatusShare{Status: c.Status, Count: c.Count, Percentage: percent(c.Count, total)})
		}
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Count != out[j].Count {
				return out[i].Count > out[j].Count
			}
			ri, rj := statusRank(out[i].Status), statusRank(out[j].Status)
			if ri != rj {
				return ri < rj
			}
			return out[i].Status < out[j].Status
		})
		return out, true
	})
}

func statusRank(s string) int {
	for i, v := range model.Statuses {
		if v == s {
			return i
		}
	}
	return len(model.Statuses)
}

// PerformanceMetrics computes throughput, processing time, per-master
// efficiency and the parts cost proxy over requests created in the window.
// start and end are dates (YYYY-MM-DD); the window runs from start 00:00:00
// to end 23:59:59 inclusive, and an empty bound leaves that side open.
//
// TotalPartsCost is the character count of all comments' parts_ordered
// text times PartsUnitPrice, regardless of the window.
func (e *Engine) PerformanceMetrics(ctx context.Context, start, end string) PerformanceMetrics {
	return cached(ctx, e, "performance_metrics:"+start+":"+end, func() (PerformanceMetrics, bool) {
		var startDay, endDay time.Time
		var err error
		var from, to string
		if start != "" {
			if startDay, err = time.Parse(model.DateLayout, start); err != nil {
				e.log.Error("performance metrics: bad start date", "value", start, "error", err)
				return emptyPerformance(), false
			}
			from = start + " 00:00:00"
		}
		if end != "" {
			if endDay, err = time.Parse(model.DateLayout, end); err != nil {
				e.log.Error("performance metrics: bad end date", "value", end, "error", err)
				return emptyPerformance(), false
			}
			to = end + " 23:59:59"
		}

		windows, err := e.requests.RepairWindows(ctx, from, to)
		if err != nil {
			e.log.Error("performance metrics failed", "error", err)
			return emptyPerformance(), false
		}
		if len(windows) == 0 {
			return emptyPerformance(), true
		}

		m := emptyPerformance()
		m.TotalRequests = len(windows)
		if start != "" && end != "" {
			days := int(endDay.Sub(startDay).Hours()/24) + 1
			if days > 0 {
				m.RequestsPerDay = utils.Round2(float64(m.TotalRequests) / float64(days))
			}
		} else {
			m.RequestsPerDay = float64(m.TotalRequests)
		}

		var hours []float64
		for _, w := range windows {
			if h, ok := e.repairHours(w); ok {
				hours = append(hours, h)
			}
			if w.MasterName == nil || *w.MasterName == "" {
				continue
			}
			me := m.MasterEfficiency[*w.MasterName]
			me.Total++
			if w.Status == model.StatusCompleted {
				me.Completed++
			}
			m.MasterEfficiency[*w.MasterName] = me
		}
		m.AverageProcessingTimeHours = utils.Round2(mean(hours))
		for name, me := range m.MasterEfficiency {
			me.Efficiency = percent(me.Completed, me.Total)
			m.MasterEfficiency[name] = me
		}

		partsLen, err := e.parts.PartsTextLength(ctx)
		if err != nil {
			e.log.Error("performance metrics: parts cost failed", "error", err)
			return emptyPerformance(), false
		}
		m.TotalPartsCost = partsLen * PartsUnitPrice
		return m, true
	})
}
