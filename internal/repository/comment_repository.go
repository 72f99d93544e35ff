package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/repairdesk/internal/model"
)

// CommentRepo appends and lists comments.  Comments are never updated or
// deleted individually; they disappear with their request.
type CommentRepo struct {
	db *sql.DB
	options
}

// NewCommentRepo returns a CommentRepo bound to the given database.
func NewCommentRepo(db *sql.DB, opts ...Option) *CommentRepo {
	return &CommentRepo{db: db, options: buildOptions(opts)}
}

// AddComment appends a comment to request requestID.  The request is not
// looked up first; a missing request trips the foreign key.  Any failure is
// logged and reported as false.
func (r *CommentRepo) AddComment(ctx context.Context, requestID int64, text, partsOrdered, author string) bool {
	const q = `INSERT INTO comments (request_id, comment_text, parts_ordered, added_date, author)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, requestID, text, partsOrdered, model.FormatTime(r.now()), author)
	if err != nil {
		r.log.Error("add comment failed", "request_id", requestID, "error", err)
		return false
	}
	return true
}

// GetComments lists the comments of a request in insertion order.
func (r *CommentRepo) GetComments(ctx context.Context, requestID int64) ([]model.Comment, error) {
	const q = `SELECT id, request_id, comment_text, parts_ordered, added_date, author
		FROM comments WHERE request_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, requestID)
	if err != nil {
		return nil, storageErr("list comments", err)
	}
	defer rows.Close()

	out := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		var parts sql.NullString
		if err := rows.Scan(&c.ID, &c.RequestID, &c.CommentText, &parts, &c.AddedDate, &c.Author); err != nil {
			return nil, storageErr("list comments", err)
		}
		c.PartsOrdered = ptr(parts)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list comments", err)
	}
	return out, nil
}

// ImportCommentTx inserts c with its source ID inside tx, ignoring rows
// whose ID already exists.  added_date is set to now.
func (r *CommentRepo) ImportCommentTx(ctx context.Context, tx *sql.Tx, c model.Comment) (bool, error) {
	const q = `INSERT OR IGNORE INTO comments (id, request_id, comment_text, parts_ordered, added_date, author)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		c.ID, c.RequestID, c.CommentText, nullable(c.PartsOrdered), model.FormatTime(r.now()), c.Author)
	if err != nil {
		return false, storageErr("import comment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("import comment", err)
	}
	return n > 0, nil
}

// PartsTextLength returns the total character length of parts_ordered over
// all comments.  Rows without parts count as zero.
func (r *CommentRepo) PartsTextLength(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT SUM(LENGTH(parts_ordered)) FROM comments`).Scan(&total); err != nil {
		return 0, storageErr("sum parts", err)
	}
	return total.Int64, nil
}
