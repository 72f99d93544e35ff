package model

// RequestStatistics is the raw roll-up returned by the repository.
type RequestStatistics struct {
	TotalRequests          int            `json:"total_requests"`
	StatusCounts           map[string]int `json:"status_counts"`
	AverageCompletionHours float64        `json:"average_completion_hours"`
	DeviceStatistics       map[string]int `json:"device_statistics"`
}

// RepairWindow holds the raw timestamps and grouping fields analytics needs
// for a single request.
type RepairWindow struct {
	DeviceType         string
	Status             string
	ProblemDescription string
	MasterName         *string
	CreatedDate        string
	CompletionDate     *string
}

// StatusCount is one row of a status GROUP BY.
type StatusCount struct {
	Status string
	Count  int
}
