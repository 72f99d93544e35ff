package model

import "time"

// TimeLayout is the text format of every timestamp column.  Values carry no
// zone; they are the wall clock of the process that wrote them.
const TimeLayout = "2006-01-02 15:04:05"

// DateLayout is the format of date-only values such as deadlines and
// analytics window bounds.
const DateLayout = "2006-01-02"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string { return t.Format(TimeLayout) }

// ParseTime parses a TimeLayout value.
func ParseTime(s string) (time.Time, error) { return time.Parse(TimeLayout, s) }

// Request represents a repair job as stored in the `requests` table.
//
// Fields:
//
//	ID: primary key, generated on insert.
//	CreatedDate: set at insertion, never modified.
//	DeviceType: one of DeviceTypes or free text.
//	DeviceModel: free text.
//	ProblemDescription: free text.
//	ClientName: free text.
//	ClientPhone: normalized before storage.
//	Status: one of Statuses.
//	MasterName: assigned technician (nil until set).
//	Deadline: due date (nil if none).
//	CompletionDate: set when the request enters ReadyForPickup or
//	  Completed; never cleared.
//	UpdatedDate: refreshed by every mutation.
type Request struct {
	ID                 int64   `json:"id"`                  // requests.id
	CreatedDate        string  `json:"created_date"`        // requests.created_date
	DeviceType         string  `json:"device_type"`         // requests.device_type
	DeviceModel        string  `json:"device_model"`        // requests.device_model
	ProblemDescription string  `json:"problem_description"` // requests.problem_description
	ClientName         string  `json:"client_name"`         // requests.client_name
	ClientPhone        string  `json:"client_phone"`        // requests.client_phone
	Status             string  `json:"status"`              // requests.status
	MasterName         *string `json:"master_name"`         // requests.master_name (nullable)
	Deadline           *string `json:"deadline"`            // requests.deadline (nullable)
	CompletionDate     *string `json:"completion_date"`     // requests.completion_date (nullable)
	UpdatedDate        *string `json:"updated_date"`        // requests.updated_date (nullable)
}

// NewRequest carries the caller-supplied fields of a request at intake.
type NewRequest struct {
	DeviceType         string  `validate:"required"`
	DeviceModel        string  `validate:"required"`
	ProblemDescription string  `validate:"required"`
	ClientName         string  `validate:"required"`
	ClientPhone        string  `validate:"required"`
	Deadline           *string `validate:"omitempty,datetime=2006-01-02"`
}
