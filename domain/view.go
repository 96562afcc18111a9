package domain

import (
	"fmt"
	"sort"
)

// Polarity tells whether a rising KPI is good or bad news.
type Polarity string

const (
	HigherIsBetter Polarity = "normal"
	LowerIsBetter  Polarity = "inverse"
)

// KPICard is a single metric tile.
type KPICard struct {
	Label     string   `json:"label"`
	Value     float64  `json:"value"`
	Display   string   `json:"display"`
	Delta     string   `json:"delta,omitempty"`
	HasDelta  bool     `json:"hasDelta"`
	Polarity  Polarity `json:"polarity,omitempty"`
	Favorable bool     `json:"favorable"`
}

// SeriesPoint is one point of a month-keyed line chart.
type SeriesPoint struct {
	Month int     `json:"month"`
	Value float64 `json:"value"`
}

// ComponentBar is one bar of the OEE breakdown.
type ComponentBar struct {
	Component string  `json:"component"`
	Value     float64 `json:"value"`
}

// DonutSlice is one slice of the completion proportion chart.
type DonutSlice struct {
	Status Status  `json:"status"`
	Count  int     `json:"count"`
	Share  float64 `json:"share"`
}

// DashboardView is everything the dashboard page renders.
type DashboardView struct {
	MTBF             KPICard        `json:"mtbf"`
	MTTR             KPICard        `json:"mttr"`
	OEE              KPICard        `json:"oee"`
	Completion       KPICard        `json:"completion"`
	MTBFSeries       []SeriesPoint  `json:"mtbfSeries"`
	MTTRSeries       []SeriesPoint  `json:"mttrSeries"`
	OEEComponents    []ComponentBar `json:"oeeComponents"`
	CompletionSlices []DonutSlice   `json:"completionSlices"`
	Observations     int            `json:"observations"`
}

// TaskRow is a task with its current position.
type TaskRow struct {
	Position int `json:"position"`
	MaintenanceTask
}

// TasksView is everything the maintenance task page renders.
type TasksView struct {
	Tasks    []TaskRow `json:"tasks"`
	Statuses []Status  `json:"statuses"`
}

// BuildTasks renders the task page from a session snapshot.
func BuildTasks(s Session) TasksView {
	rows := make([]TaskRow, len(s.Tasks))
	for i, t := range s.Tasks {
		rows[i] = TaskRow{Position: i, MaintenanceTask: t.clone()}
	}
	return TasksView{Tasks: rows, Statuses: append([]Status(nil), Statuses...)}
}

// BuildDashboard renders the dashboard page from a session snapshot. It
// does not advance the KPI history.
func BuildDashboard(s Session) DashboardView {
	h := s.History
	v := DashboardView{
		MTBF:         kpiCard("MTBF Hours", h, func(o Observation) float64 { return o.MTBF }, HigherIsBetter),
		MTTR:         kpiCard("MTTR Hours", h, func(o Observation) float64 { return o.MTTR }, LowerIsBetter),
		MTBFSeries:   series(h, func(o Observation) float64 { return o.MTBF }),
		MTTRSeries:   series(h, func(o Observation) float64 { return o.MTTR }),
		Observations: h.Len(),
	}

	v.OEE = KPICard{Label: "OEE", Display: "n/a"}
	if last, ok := h.Latest(); ok {
		v.OEE.Value = last.OEE
		v.OEE.Display = fmt.Sprintf("%.2f%%", last.OEE)
		v.OEEComponents = []ComponentBar{
			{Component: "Quality", Value: last.Quality},
			{Component: "Performance", Value: last.Performance},
			{Component: "Availability", Value: last.Availability},
		}
		sort.SliceStable(v.OEEComponents, func(i, j int) bool {
			return v.OEEComponents[i].Value > v.OEEComponents[j].Value
		})
	}

	c := CompletionOf(s.Tasks)
	v.Completion = KPICard{Label: "Completion Rate", Value: c.Rate, Display: fmt.Sprintf("%.2f%%", c.Rate)}
	v.CompletionSlices = make([]DonutSlice, 0, len(c.Breakdown))
	for _, b := range c.Breakdown {
		v.CompletionSlices = append(v.CompletionSlices, DonutSlice{
			Status: b.Status,
			Count:  b.Count,
			Share:  float64(b.Count) / float64(c.Total) * 100,
		})
	}
	return v
}

func kpiCard(label string, h History, field func(Observation) float64, polarity Polarity) KPICard {
	card := KPICard{Label: label, Display: "n/a", Polarity: polarity}
	last, ok := h.Latest()
	if !ok {
		return card
	}
	card.Value = field(last)
	card.Display = fmt.Sprintf("%g", card.Value)
	d := h.Delta(field)
	if !d.Valid {
		return card
	}
	card.HasDelta = true
	card.Delta = d.String()
	if polarity == LowerIsBetter {
		card.Favorable = d.Value <= 0
	} else {
		card.Favorable = d.Value >= 0
	}
	return card
}

func series(h History, field func(Observation) float64) []SeriesPoint {
	out := make([]SeriesPoint, len(h.Observations))
	for i, o := range h.Observations {
		out[i] = SeriesPoint{Month: o.Month, Value: field(o)}
	}
	return out
}
