// Package importer loads the seed CSV exports (users, requests, comments)
// into the database.  Files are semicolon-delimited with a header row.
// Each file is imported in one transaction and rows are inserted with their
// source ids, ignoring ids that already exist, so running an import twice
// changes nothing.
package importer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iliyamo/repairdesk/internal/cache"
	"github.com/iliyamo/repairdesk/internal/logger"
	"github.com/iliyamo/repairdesk/internal/model"
	"github.com/iliyamo/repairdesk/internal/repository"
	"github.com/iliyamo/repairdesk/internal/utils"
)

// Seed file names looked up by ImportDir.
const (
	UsersFile    = "inputDataUsers.csv"
	RequestsFile = "inputDataRequests.csv"
	CommentsFile = "inputDataComments.csv"
)

// Placeholders for requests whose client is not among the imported users.
const (
	UnknownClient    = "Неизвестный клиент"
	PlaceholderPhone = "+7 (000) 000-00-00"
)

var roles = map[string]string{
	"менеджер":      model.RoleManager,
	"мастер":        model.RoleMaster,
	"оператор":      model.RoleOperator,
	"администратор": model.RoleAdmin,
	"заказчик":      model.RoleClient,
}

// Result counts what one import run did.
type Result struct {
	Users    int `json:"users"`
	Requests int `json:"requests"`
	Comments int `json:"comments"`
	Skipped  int `json:"skipped"` // comments whose request does not exist
}

// Importer writes CSV rows through the repositories.
type Importer struct {
	db       *sql.DB
	requests *repository.RequestRepo
	comments *repository.CommentRepo
	users    *repository.UserRepo
	salt     string
	cache    *cache.Cache
	log      *slog.Logger
}

// Option customizes an Importer.
type Option func(*Importer)

// WithCache sets the analytics cache to invalidate after an import that
// inserted requests or comments.
func WithCache(c *cache.Cache) Option { return func(im *Importer) { im.cache = c } }

// New returns an Importer.  salt is used to hash imported passwords.
func New(db *sql.DB, requests *repository.RequestRepo, comments *repository.CommentRepo, users *repository.UserRepo, salt string, opts ...Option) *Importer {
	im := &Importer{
		db:       db,
		requests: requests,
		comments: comments,
		users:    users,
		salt:     salt,
		log:      logger.WithComponent("importer"),
	}
	for _, fn := range opts {
		fn(im)
	}
	return im
}

func (im *Importer) invalidate(ctx context.Context, inserted int) {
	if inserted > 0 {
		im.cache.Invalidate(ctx)
	}
}

// ImportDir imports the seed files found in dir, users first.  Missing
// files are skipped.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Result, error) {
	var res Result
	steps := []struct {
		file string
		run  func(context.Context, io.Reader) error
	}{
		{UsersFile, func(ctx context.Context, r io.Reader) (err error) {
			res.Users, err = im.ImportUsers(ctx, r)
			return
		}},
		{RequestsFile, func(ctx context.Context, r io.Reader) (err error) {
			res.Requests, err = im.ImportRequests(ctx, r)
			return
		}},
		{CommentsFile, func(ctx context.Context, r io.Reader) (err error) {
			res.Comments, res.Skipped, err = im.ImportComments(ctx, r)
			return
		}},
	}
	for _, s := range steps {
		path := filepath.Join(dir, s.file)
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			im.log.Debug("seed file not found", "path", path)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("open %s: %w", path, err)
		}
		err = s.run(ctx, f)
		f.Close()
		if err != nil {
			return res, fmt.Errorf("import %s: %w", s.file, err)
		}
	}
	im.log.Info("import finished", "users", res.Users, "requests", res.Requests,
		"comments", res.Comments, "skipped_comments", res.Skipped)
	return res, nil
}

type row struct {
	line   int
	fields map[string]string
}

func (r row) get(name string) string { return strings.TrimSpace(r.fields[name]) }

func (r row) id(name string) (int64, error) {
	n, err := strconv.ParseInt(r.get(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s %q is not an integer", r.line, name, r.get(name))
	}
	return n, nil
}

// readRows parses a header-keyed semicolon CSV and checks that every
// required column is present.
func readRows(r io.Reader, required ...string) ([]row, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	for _, name := range required {
		found := false
		for _, h := range header {
			if h == name {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var rows []row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		fields := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				fields[h] = rec[i]
			}
		}
		rows = append(rows, row{line: line, fields: fields})
	}
}

// ImportUsers imports userID;fio;phone;login;password;type rows.  Roles
// are mapped from their Russian names, anything else becomes client.
func (im *Importer) ImportUsers(ctx context.Context, r io.Reader) (int, error) {
	rows, err := readRows(r, "userID", "fio", "login", "password", "type")
	if err != nil {
		return 0, err
	}
	inserted := 0
	err = repository.RunInTx(ctx, im.db, func(tx *sql.Tx) error {
		for _, rw := range rows {
			id, err := rw.id("userID")
			if err != nil {
				return err
			}
			role, ok := roles[strings.ToLower(rw.get("type"))]
			if !ok {
				role = model.RoleClient
			}
			ok, err = im.users.ImportUserTx(ctx, tx, model.Account{
				ID:           id,
				Username:     rw.get("login"),
				PasswordHash: utils.HashPassword(rw.get("password"), im.salt),
				Role:         role,
				FullName:     rw.get("fio"),
			})
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ImportRequests imports request rows.  Dates are whole days and get a
// midnight time; a completionDate of "null" means not completed.  The
// client and master names are resolved from the imported users.
func (im *Importer) ImportRequests(ctx context.Context, r io.Reader) (int, error) {
	rows, err := readRows(r, "requestID", "startDate", "homeTechType", "homeTechModel",
		"problemDescryption", "requestStatus", "completionDate", "clientID")
	if err != nil {
		return 0, err
	}
	inserted := 0
	err = repository.RunInTx(ctx, im.db, func(tx *sql.Tx) error {
		for _, rw := range rows {
			req, err := im.requestFromRow(ctx, tx, rw)
			if err != nil {
				return err
			}
			ok, err := im.requests.ImportRequestTx(ctx, tx, req)
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	im.invalidate(ctx, inserted)
	return inserted, nil
}

func (im *Importer) requestFromRow(ctx context.Context, tx *sql.Tx, rw row) (model.Request, error) {
	id, err := rw.id("requestID")
	if err != nil {
		return model.Request{}, err
	}
	req := model.Request{
		ID:                 id,
		CreatedDate:        rw.get("startDate") + " 00:00:00",
		DeviceType:         rw.get("homeTechType"),
		DeviceModel:        rw.get("homeTechModel"),
		ProblemDescription: rw.get("problemDescryption"),
		ClientName:         UnknownClient,
		ClientPhone:        PlaceholderPhone,
		Status:             rw.get("requestStatus"),
	}
	if c := rw.get("completionDate"); c != "" && c != "null" {
		completed := c + " 00:00:00"
		req.CompletionDate = &completed
	}

	if clientID, err := strconv.ParseInt(rw.get("clientID"), 10, 64); err == nil {
		name, ok, err := im.users.FullNameTx(ctx, tx, clientID)
		if err != nil {
			return model.Request{}, err
		}
		if ok {
			req.ClientName = name
		}
	}
	if masterID, err := strconv.ParseInt(rw.get("masterID"), 10, 64); err == nil {
		name, ok, err := im.users.FullNameTx(ctx, tx, masterID)
		if err != nil {
			return model.Request{}, err
		}
		if ok {
			req.MasterName = &name
		}
	}
	return req, nil
}

// ImportComments imports commentID;message;masterID;requestID rows.
// Comments whose request does not exist are skipped and counted.
func (im *Importer) ImportComments(ctx context.Context, r io.Reader) (inserted, skipped int, err error) {
	rows, err := readRows(r, "commentID", "message", "masterID", "requestID")
	if err != nil {
		return 0, 0, err
	}
	err = repository.RunInTx(ctx, im.db, func(tx *sql.Tx) error {
		for _, rw := range rows {
			id, err := rw.id("commentID")
			if err != nil {
				return err
			}
			requestID, err := rw.id("requestID")
			if err != nil {
				return err
			}
			exists, err := im.requests.ExistsTx(ctx, tx, requestID)
			if err != nil {
				return err
			}
			if !exists {
				im.log.Debug("skipping comment for missing request", "comment_id", id, "request_id", requestID)
				skipped++
				continue
			}
			ok, err := im.comments.ImportCommentTx(ctx, tx, model.Comment{
				ID:          id,
				RequestID:   requestID,
				CommentText: rw.get("message"),
				Author:      "master_" + rw.get("masterID"),
			})
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	im.invalidate(ctx, inserted)
	return inserted, skipped, nil
}
