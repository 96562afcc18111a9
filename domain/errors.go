package domain

import "errors"

// ErrOutOfRange is returned when a task position does not exist in the session.
var ErrOutOfRange = errors.New("task position out of range")

// ErrInvalidStatus is returned for status values outside Pending, Completed and Planned.
var ErrInvalidStatus = errors.New("invalid task status")

// ErrInvalidDate is returned when a date is not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("invalid date")
