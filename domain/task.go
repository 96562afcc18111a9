package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a maintenance task.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusPlanned   Status = "Planned"
)

// Statuses lists the selectable statuses in display order.
var Statuses = []Status{StatusPending, StatusCompleted, StatusPlanned}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusPlanned:
		return true
	}
	return false
}

// ParseStatus accepts a status name in any letter case.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	for _, s := range Statuses {
		if strings.EqualFold(v, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
}

// DateLayout is the wire and form representation of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day without time of day.
type Date struct {
	time.Time
}

// NewDate returns the given calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(v string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(v))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, v)
	}
	return Date{Time: t}, nil
}

// ParseOptionalDate returns nil for an empty string.
func ParseOptionalDate(v string) (*Date, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	d, err := ParseDate(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MaintenanceTask is one row of the maintenance plan. Its position in the
// session's task list is its identity.
type MaintenanceTask struct {
	Task           string `json:"task"`
	ScheduledDate  Date   `json:"scheduledDate"`
	CompletionDate *Date  `json:"completionDate,omitempty"`
	Status         Status `json:"status"`
}

func (t MaintenanceTask) clone() MaintenanceTask {
	if t.CompletionDate != nil {
		d := *t.CompletionDate
		t.CompletionDate = &d
	}
	return t
}

// SeedTasks returns the rows every new session starts with.
func SeedTasks() []MaintenanceTask {
	done := func(y int, m time.Month, d int) *Date {
		v := NewDate(y, m, d)
		return &v
	}
	return []MaintenanceTask{
		{Task: "Check Sensors", ScheduledDate: NewDate(2023, time.December, 1), CompletionDate: done(2023, time.December, 1), Status: StatusCompleted},
		{Task: "Lubricate Bearings", ScheduledDate: NewDate(2023, time.December, 7), CompletionDate: done(2023, time.December, 7), Status: StatusCompleted},
		{Task: "Inspect Hydraulic System", ScheduledDate: NewDate(2023, time.December, 15), CompletionDate: done(2023, time.December, 16), Status: StatusCompleted},
		{Task: "Align Components", ScheduledDate: NewDate(2023, time.December, 20), CompletionDate: done(2023, time.December, 21), Status: StatusCompleted},
		{Task: "Check Interlocks", ScheduledDate: NewDate(2023, time.December, 25), Status: StatusPending},
	}
}
