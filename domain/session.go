package domain

import "fmt"

// Session is the whole mutable state behind one dashboard user.
type Session struct {
	ID        string            `json:"id"`
	Tasks     []MaintenanceTask `json:"tasks"`
	History   History           `json:"history"`
	Simulated bool              `json:"simulated,omitempty"`
}

// NewSession returns a session holding the seed tasks and an empty history.
func NewSession(id string) Session {
	return Session{ID: id, Tasks: SeedTasks()}
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := Session{ID: s.ID, History: s.History.clone(), Simulated: s.Simulated}
	if s.Tasks != nil {
		out.Tasks = make([]MaintenanceTask, len(s.Tasks))
		for i, t := range s.Tasks {
			out.Tasks[i] = t.clone()
		}
	}
	return out
}

// AddTask appends a task and returns its position. The name and the
// ordering of the dates are not validated.
func (s *Session) AddTask(name string, scheduled Date, completion *Date, status Status) (int, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	t := MaintenanceTask{Task: name, ScheduledDate: scheduled, CompletionDate: completion, Status: status}
	s.Tasks = append(s.Tasks, t.clone())
	return len(s.Tasks) - 1, nil
}

// UpdateTask overwrites the status and both dates of the task at pos.
func (s *Session) UpdateTask(pos int, status Status, scheduled Date, completion *Date) error {
	if err := s.checkPosition(pos); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	t := &s.Tasks[pos]
	t.Status = status
	t.ScheduledDate = scheduled
	t.CompletionDate = nil
	if completion != nil {
		d := *completion
		t.CompletionDate = &d
	}
	return nil
}

// DeleteTask removes the task at pos; later tasks move up by one.
func (s *Session) DeleteTask(pos int) (MaintenanceTask, error) {
	if err := s.checkPosition(pos); err != nil {
		return MaintenanceTask{}, err
	}
	removed := s.Tasks[pos]
	s.Tasks = append(s.Tasks[:pos:pos], s.Tasks[pos+1:]...)
	return removed, nil
}

func (s *Session) checkPosition(pos int) error {
	if pos < 0 || pos >= len(s.Tasks) {
		return fmt.Errorf("%w: position %d, %d tasks", ErrOutOfRange, pos, len(s.Tasks))
	}
	return nil
}

// Tick draws one reading and appends it to the history.
func (s *Session) Tick(sampler Sampler) Observation {
	return s.History.AppendAndTrim(sampler.Sample())
}

// WarmUp runs n ticks the first time it is called on a session with an
// empty history. It reports whether any ticks were applied.
func (s *Session) WarmUp(sampler Sampler, n int) bool {
	if s.Simulated || n <= 0 || s.History.Len() > 0 {
		return false
	}
	for i := 0; i < n; i++ {
		s.Tick(sampler)
	}
	s.Simulated = true
	return true
}
