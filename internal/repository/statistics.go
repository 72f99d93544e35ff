package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/repairdesk/internal/model"
	"github.com/iliyamo/repairdesk/internal/utils"
)

// GetRequestStatistics rolls up request totals, counts per status and per
// device type, and the mean completion time in hours over every request
// with a completion date (0 when there is none).
func (r *RequestRepo) GetRequestStatistics(ctx context.Context) (model.RequestStatistics, error) {
	stats := model.RequestStatistics{
		StatusCounts:     map[string]int{},
		DeviceStatistics: map[string]int{},
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&stats.TotalRequests); err != nil {
		return stats, storageErr("statistics", err)
	}

	if err := r.countInto(ctx, `SELECT status, COUNT(*) FROM requests GROUP BY status`, stats.StatusCounts); err != nil {
		return stats, err
	}

	var avg sql.NullFloat64
	const avgQ = `SELECT AVG((julianday(completion_date) - julianday(created_date)) * 24)
		FROM requests WHERE completion_date IS NOT NULL`
	if err := r.db.QueryRowContext(ctx, avgQ).Scan(&avg); err != nil {
		return stats, storageErr("statistics", err)
	}
	if avg.Valid {
		stats.AverageCompletionHours = utils.Round2(avg.Float64)
	}

	if err := r.countInto(ctx, `SELECT device_type, COUNT(*) FROM requests GROUP BY device_type`, stats.DeviceStatistics); err != nil {
		return stats, err
	}
	return stats, nil
}

func (r *RequestRepo) countInto(ctx context.Context, q string, dst map[string]int) error {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return storageErr("statistics", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return storageErr("statistics", err)
		}
		dst[key] = n
	}
	return storageErr("statistics", rows.Err())
}

// StatusCounts returns the number of requests per status, largest first.
func (r *RequestRepo) StatusCounts(ctx context.Context) ([]model.StatusCount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM requests GROUP BY status ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, storageErr("status counts", err)
	}
	defer rows.Close()
	var out []model.StatusCount
	for rows.Next() {
		var sc model.StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, storageErr("status counts", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("status counts", err)
	}
	return out, nil
}

// CountRequests returns the total number of requests.
func (r *RequestRepo) CountRequests(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&n); err != nil {
		return 0, storageErr("count requests", err)
	}
	return n, nil
}

// RepairWindows returns the analytics view of requests created within
// [from, to], both inclusive and compared as text.  An empty bound leaves
// that side open.  Rows come back grouped by device type, then by id.
func (r *RequestRepo) RepairWindows(ctx context.Context, from, to string) ([]model.RepairWindow, error) {
	q := `SELECT device_type, status, problem_description, master_name, created_date, completion_date
		FROM requests`
	var args []any
	switch {
	case from != "" && to != "":
		q += ` WHERE created_date BETWEEN ? AND ?`
		args = append(args, from, to)
	case from != "":
		q += ` WHERE created_date >= ?`
		args = append(args, from)
	case to != "":
		q += ` WHERE created_date <= ?`
		args = append(args, to)
	}
	q += ` ORDER BY device_type, id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("repair windows", err)
	}
	defer rows.Close()

	var out []model.RepairWindow
	for rows.Next() {
		var w model.RepairWindow
		var master, completion sql.NullString
		if err := rows.Scan(&w.DeviceType, &w.Status, &w.ProblemDescription, &master, &w.CreatedDate, &completion); err != nil {
			return nil, storageErr("repair windows", err)
		}
		w.MasterName = ptr(master)
		w.CompletionDate = ptr(completion)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("repair windows", err)
	}
	return out, nil
}
