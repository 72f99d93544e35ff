// Package service wraps the repositories for interactive request entry.
// Writes go to the database first; the analytics cache and the event
// publisher are notified afterwards and their failures never fail the
// write.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/repairdesk/internal/cache"
	"github.com/iliyamo/repairdesk/internal/logger"
	"github.com/iliyamo/repairdesk/internal/model"
	"github.com/iliyamo/repairdesk/internal/queue"
	"github.com/iliyamo/repairdesk/internal/repository"
	"github.com/iliyamo/repairdesk/internal/utils"
)

// ErrInvalidInput is returned, wrapped, when input fails validation.
var ErrInvalidInput = errors.New("invalid input")

// RequestService is the write path used by the CLI.
type RequestService struct {
	requests *repository.RequestRepo
	comments *repository.CommentRepo
	cache    *cache.Cache
	events   queue.Publisher
	validate *validator.Validate
	now      func() time.Time
	log      *slog.Logger
}

// Option customizes a RequestService.
type Option func(*RequestService)

// WithCache sets the analytics cache invalidated after every write.
func WithCache(c *cache.Cache) Option { return func(s *RequestService) { s.cache = c } }

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p queue.Publisher) Option { return func(s *RequestService) { s.events = p } }

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option { return func(s *RequestService) { s.now = now } }

// NewRequestService returns a service over the given repositories.
func NewRequestService(requests *repository.RequestRepo, comments *repository.CommentRepo, opts ...Option) *RequestService {
	s := &RequestService{
		requests: requests,
		comments: comments,
		events:   queue.NopPublisher{},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		log:      logger.WithComponent("service"),
	}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func (s *RequestService) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
		}
		return invalid("%s", strings.Join(fields, ", "))
	}
	return invalid("%v", err)
}

// CreateRequest validates in, normalizes the client phone and stores the
// request with status New.  It returns the new request id.
func (s *RequestService) CreateRequest(ctx context.Context, in model.NewRequest) (int64, error) {
	in.DeviceType = strings.TrimSpace(in.DeviceType)
	in.DeviceModel = strings.TrimSpace(in.DeviceModel)
	in.ProblemDescription = strings.TrimSpace(in.ProblemDescription)
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientPhone = strings.TrimSpace(in.ClientPhone)
	if err := s.check(in); err != nil {
		return 0, err
	}
	phone, err := utils.NormalizePhone(in.ClientPhone)
	if err != nil {
		return 0, invalid("client phone %q", in.ClientPhone)
	}
	in.ClientPhone = phone

	id, err := s.requests.AddRequest(ctx, in)
	if err != nil {
		return 0, err
	}
	s.afterWrite(ctx, queue.RequestEvent{
		Type:        queue.EventRequestCreated,
		RequestID:   id,
		DeviceType:  in.DeviceType,
		DeviceModel: in.DeviceModel,
		ClientName:  in.ClientName,
		ClientPhone: in.ClientPhone,
		Status:      model.StatusNew,
	})
	return id, nil
}

// ChangeStatus moves request id to status, optionally assigning a master.
// Only the known statuses are accepted.  The bool reports whether the
// request exists.
func (s *RequestService) ChangeStatus(ctx context.Context, id int64, status, masterName string) (bool, error) {
	if !model.IsKnownStatus(status) {
		return false, invalid("unknown status %q", status)
	}
	before, err := s.requests.GetRequest(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ok, err := s.requests.UpdateRequestStatus(ctx, id, status, strings.TrimSpace(masterName))
	if err != nil || !ok {
		return ok, err
	}

	ev := queue.RequestEvent{
		Type:        queue.EventStatusChanged,
		RequestID:   id,
		DeviceType:  before.DeviceType,
		DeviceModel: before.DeviceModel,
		ClientName:  before.ClientName,
		ClientPhone: before.ClientPhone,
		OldStatus:   before.Status,
		Status:      status,
	}
	switch {
	case strings.TrimSpace(masterName) != "":
		ev.MasterName = strings.TrimSpace(masterName)
	case before.MasterName != nil:
		ev.MasterName = *before.MasterName
	}
	s.afterWrite(ctx, ev)
	return true, nil
}

// ExtendDeadline sets a new due date (YYYY-MM-DD) on request id.
func (s *RequestService) ExtendDeadline(ctx context.Context, id int64, deadline string) (bool, error) {
	if _, err := time.Parse(model.DateLayout, deadline); err != nil {
		return false, invalid("deadline %q is not YYYY-MM-DD", deadline)
	}
	if !s.requests.ExtendDeadline(ctx, id, deadline) {
		return false, nil
	}
	s.cache.Invalidate(ctx)
	return true, nil
}

// AddComment appends a comment to request id.  parts may be empty.
func (s *RequestService) AddComment(ctx context.Context, id int64, text, parts, author string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, invalid("comment text is required")
	}
	if !s.comments.AddComment(ctx, id, text, strings.TrimSpace(parts), author) {
		return false, nil
	}
	s.cache.Invalidate(ctx)
	return true, nil
}

// DeleteRequest removes request id with its comments.
func (s *RequestService) DeleteRequest(ctx context.Context, id int64) (bool, error) {
	ok, err := s.requests.DeleteRequest(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	s.cache.Invalidate(ctx)
	return true, nil
}

func (s *RequestService) afterWrite(ctx context.Context, ev queue.RequestEvent) {
	s.cache.Invalidate(ctx)
	ev.OccurredAt = model.FormatTime(s.now())
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("event not published", "type", ev.Type, "request_id", ev.RequestID, "error", err)
	}
}
