package domain

import "sort"

// StatusCount is one slice of the completion breakdown.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// Completion summarizes how many non-planned tasks are done.
type Completion struct {
	Rate      float64       `json:"rate"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Breakdown []StatusCount `json:"breakdown"`
}

// CompletionOf ignores planned tasks and returns the share of the rest that
// are completed, as a percentage. An empty set has a rate of 0.
func CompletionOf(tasks []MaintenanceTask) Completion {
	counts := make(map[Status]int, len(Statuses))
	var c Completion
	for _, t := range tasks {
		if t.Status == StatusPlanned {
			continue
		}
		c.Total++
		counts[t.Status]++
		if t.Status == StatusCompleted {
			c.Completed++
		}
	}
	if c.Total > 0 {
		c.Rate = float64(c.Completed) / float64(c.Total) * 100
	}

	c.Breakdown = make([]StatusCount, 0, len(counts))
	for _, s := range []Status{StatusCompleted, StatusPending} {
		if n := counts[s]; n > 0 {
			c.Breakdown = append(c.Breakdown, StatusCount{Status: s, Count: n})
		}
	}
	sort.SliceStable(c.Breakdown, func(i, j int) bool {
		return c.Breakdown[i].Count > c.Breakdown[j].Count
	})
	return c
}
