package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/iliyamo/repairdesk/internal/model"
)

// RequestRepo provides CRUD and search over the requests table.  Timestamps
// are written as model.TimeLayout text taken from the repository clock.
type RequestRepo struct {
	db *sql.DB
	options
}

// NewRequestRepo returns a RequestRepo bound to the given database.
func NewRequestRepo(db *sql.DB, opts ...Option) *RequestRepo {
	return &RequestRepo{db: db, options: buildOptions(opts)}
}

// DB exposes the underlying handle so callers can run RunInTx across
// repositories.
func (r *RequestRepo) DB() *sql.DB { return r.db }

const requestColumns = `id, created_date, device_type, device_model, problem_description,
	client_name, client_phone, status, master_name, deadline, completion_date, updated_date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(s rowScanner) (model.Request, error) {
	var req model.Request
	var master, deadline, completion, updated sql.NullString
	err := s.Scan(
		&req.ID, &req.CreatedDate, &req.DeviceType, &req.DeviceModel, &req.ProblemDescription,
		&req.ClientName, &req.ClientPhone, &req.Status, &master, &deadline, &completion, &updated,
	)
	if err != nil {
		return model.Request{}, err
	}
	req.MasterName = ptr(master)
	req.Deadline = ptr(deadline)
	req.CompletionDate = ptr(completion)
	req.UpdatedDate = ptr(updated)
	return req, nil
}

func (r *RequestRepo) queryRequests(ctx context.Context, op, q string, args ...any) ([]model.Request, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := []model.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

// AddRequest inserts a new request with status New and created/updated set
// to now, and returns its generated ID.  Phone normalization is the
// caller's job.  On failure nothing is persisted and a *StorageError is
// returned.
func (r *RequestRepo) AddRequest(ctx context.Context, in model.NewRequest) (int64, error) {
	now := model.FormatTime(r.now())
	const q = `INSERT INTO requests (
			created_date, device_type, device_model, problem_description,
			client_name, client_phone, status, deadline, updated_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		now, in.DeviceType, in.DeviceModel, in.ProblemDescription,
		in.ClientName, in.ClientPhone, model.StatusNew, nullable(in.Deadline), now,
	)
	if err != nil {
		r.log.Error("add request failed", "error", err)
		return 0, storageErr("add request", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("add request", err)
	}
	r.log.Info("request created", "request_id", id)
	return id, nil
}

// GetRequest fetches a request by id.  ErrNotFound is returned when no row
// matches.
func (r *RequestRepo) GetRequest(ctx context.Context, id int64) (model.Request, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Request{}, ErrNotFound
	}
	if err != nil {
		return model.Request{}, storageErr("get request", err)
	}
	return req, nil
}

// GetAllRequests lists requests newest first.  A non-empty statusFilter
// restricts the result to that exact status.
func (r *RequestRepo) GetAllRequests(ctx context.Context, statusFilter string) ([]model.Request, error) {
	q := `SELECT ` + requestColumns + ` FROM requests`
	var args []any
	if statusFilter != "" {
		q += ` WHERE status = ?`
		args = append(args, statusFilter)
	}
	q += ` ORDER BY created_date DESC, id DESC`
	return r.queryRequests(ctx, "list requests", q, args...)
}

// UpdateRequestStatus sets the status of request id and refreshes
// updated_date.  Entering ReadyForPickup or Completed stamps
// completion_date with the current time, every time; leaving those states
// never clears it.  A non-empty masterName replaces the assigned master.
// The bool reports whether a row matched id.
func (r *RequestRepo) UpdateRequestStatus(ctx context.Context, id int64, newStatus, masterName string) (bool, error) {
	now := model.FormatTime(r.now())
	fields := []string{"status = ?", "updated_date = ?"}
	args := []any{newStatus, now}
	if model.StampsCompletion(newStatus) {
		fields = append(fields, "completion_date = ?")
		args = append(args, now)
	}
	if masterName != "" {
		fields = append(fields, "master_name = ?")
		args = append(args, masterName)
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `UPDATE requests SET `+strings.Join(fields, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		r.log.Error("update status failed", "request_id", id, "error", err)
		return false, storageErr("update status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("update status", err)
	}
	if n > 0 {
		r.log.Info("request status changed", "request_id", id, "status", newStatus)
	}
	return n > 0, nil
}

// ExtendDeadline overwrites the deadline of request id.  It reports whether
// a row was changed; storage faults are logged and reported as false.
func (r *RequestRepo) ExtendDeadline(ctx context.Context, id int64, newDeadline string) bool {
	const q = `UPDATE requests SET deadline = ?, updated_date = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, newDeadline, model.FormatTime(r.now()), id)
	if err != nil {
		r.log.Error("extend deadline failed", "request_id", id, "error", err)
		return false
	}
	n, err := res.RowsAffected()
	if err != nil {
		r.log.Error("extend deadline failed", "request_id", id, "error", err)
		return false
	}
	return n > 0
}

// SearchRequests returns requests whose id, client name, client phone or
// device model contains term, newest first.  Matching uses SQLite LIKE, so
// it ignores case for ASCII letters only.
func (r *RequestRepo) SearchRequests(ctx context.Context, term string) ([]model.Request, error) {
	pattern := "%" + term + "%"
	q := `SELECT ` + requestColumns + ` FROM requests
		WHERE CAST(id AS TEXT) LIKE ?
			OR client_name LIKE ?
			OR client_phone LIKE ?
			OR device_model LIKE ?
		ORDER BY created_date DESC, id DESC`
	return r.queryRequests(ctx, "search requests", q, pattern, pattern, pattern, pattern)
}

// DeleteRequest removes request id together with its comments.  The bool
// reports whether a row was deleted.
func (r *RequestRepo) DeleteRequest(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		return false, storageErr("delete request", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("delete request", err)
	}
	if n > 0 {
		r.log.Info("request deleted", "request_id", id)
	}
	return n > 0, nil
}

// ImportRequestTx inserts req with its source ID inside tx, ignoring rows
// whose ID already exists.  Status, created and completion dates are taken
// from req; updated_date is set to now.  The bool reports whether a row was
// inserted.
func (r *RequestRepo) ImportRequestTx(ctx context.Context, tx *sql.Tx, req model.Request) (bool, error) {
	const q = `INSERT OR IGNORE INTO requests (
			id, created_date, device_type, device_model, problem_description,
			client_name, client_phone, status, master_name, completion_date, updated_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		req.ID, req.CreatedDate, req.DeviceType, req.DeviceModel, req.ProblemDescription,
		req.ClientName, req.ClientPhone, req.Status, nullable(req.MasterName),
		nullable(req.CompletionDate), model.FormatTime(r.now()),
	)
	if err != nil {
		return false, storageErr("import request "+strconv.FormatInt(req.ID, 10), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("import request", err)
	}
	return n > 0, nil
}

// ExistsTx reports whether a request with the given id exists.
func (r *RequestRepo) ExistsTx(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM requests WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("request exists", err)
	}
	return true, nil
}
