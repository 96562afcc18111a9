package api

import (
	"context"

	"pm-dashboard/domain"
)

// Store abstracts session persistence for handlers.
type Store interface {
	// Get returns a snapshot of the session, initializing it when absent.
	Get(ctx context.Context, id string) (domain.Session, error)
	// Update applies fn to the session atomically and returns the new snapshot.
	// When fn fails nothing is stored and its error is returned.
	Update(ctx context.Context, id string, fn func(*domain.Session) error) (domain.Session, error)
	Ping(ctx context.Context) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate task submissions.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, sessionID, key string) (bool, error)
	// Remove deletes a previously added key, used when the submission fails.
	Remove(ctx context.Context, sessionID, key string) error
}

type taskRequest struct {
	Task           string `json:"task"`
	ScheduledDate  string `json:"scheduledDate"`
	CompletionDate string `json:"completionDate,omitempty"`
	Status         string `json:"status,omitempty"`
}

type updateTaskRequest struct {
	ScheduledDate  string `json:"scheduledDate"`
	CompletionDate string `json:"completionDate,omitempty"`
	Status         string `json:"status"`
}

type tasksResponse struct {
	Tasks []domain.TaskRow `json:"tasks"`
}

type taskResponse struct {
	Position int                    `json:"position"`
	Task     domain.MaintenanceTask `json:"task"`
}

type tickResponse struct {
	Observation domain.Observation `json:"observation"`
	History     int                `json:"history"`
}
