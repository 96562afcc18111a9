package api

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"pm-dashboard/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageTasks     = "Maintenance Tasks"
	pageDashboard = "Dashboard"

	chartWidth  = 360
	chartHeight = 140
)

var donutPalette = []string{"#5a61bd", "#7178df", "#9ca2ef"}

// Renderer renders the embedded HTML views.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"fmt2":     func(v float64) string { return fmt.Sprintf("%.2f", v) },
		"date":     formatDate,
		"points":   chartPoints,
		"barWidth": barWidth,
		"donut":    donutGradient,
		"selected": func(a, b domain.Status) bool { return a == b },
	}
	t, err := template.New("views").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type pageData struct {
	Title     string
	Pages     []string
	Active    string
	Flash     string
	Tasks     domain.TasksView
	Dashboard domain.DashboardView
}

func newPageData(active string) pageData {
	return pageData{Title: active, Pages: []string{pageTasks, pageDashboard}, Active: active}
}

func formatDate(v any) string {
	switch d := v.(type) {
	case domain.Date:
		return d.String()
	case *domain.Date:
		if d == nil {
			return ""
		}
		return d.String()
	}
	return ""
}

// chartPoints lays a month series out on the SVG line chart, one slot per
// retained observation.
func chartPoints(series []domain.SeriesPoint) string {
	if len(series) == 0 {
		return ""
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range series {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	step := float64(chartWidth) / float64(domain.HistoryLimit-1)
	pts := make([]string, len(series))
	for i, p := range series {
		x := float64(i) * step
		y := chartHeight - (p.Value-lo)/span*(chartHeight-10) - 5
		pts[i] = fmt.Sprintf("%.1f,%.1f", x, y)
	}
	return strings.Join(pts, " ")
}

func barWidth(v float64) string {
	return fmt.Sprintf("%.1f%%", math.Max(0, math.Min(100, v)))
}

func donutGradient(slices []domain.DonutSlice) template.CSS {
	if len(slices) == 0 {
		return template.CSS("background: #ddd")
	}
	var (
		b    strings.Builder
		from float64
	)
	b.WriteString("background: conic-gradient(")
	for i, s := range slices {
		if i > 0 {
			b.WriteString(", ")
		}
		to := from + s.Share
		fmt.Fprintf(&b, "%s %.2f%% %.2f%%", donutPalette[i%len(donutPalette)], from, to)
		from = to
	}
	b.WriteString(")")
	return template.CSS(b.String())
}

func redirectWithFlash(c echo.Context, path, flash string) error {
	if flash != "" {
		path += "?flash=" + url.QueryEscape(flash)
	}
	return c.Redirect(http.StatusSeeOther, path)
}

// selectPage routes the named page choice to its view.
func selectPage(c echo.Context) error {
	if c.QueryParam("page") == pageDashboard {
		return c.Redirect(http.StatusSeeOther, "/dashboard")
	}
	return c.Redirect(http.StatusSeeOther, "/tasks")
}

func tasksPage(store Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := get(c, store)
		if err != nil {
			return fail(c, err)
		}
		data := newPageData(pageTasks)
		data.Flash = c.QueryParam("flash")
		data.Tasks = domain.BuildTasks(sess)
		return c.Render(http.StatusOK, "tasks.html", data)
	}
}

func addTaskForm(store Store, broker *updateBroker) echo.HandlerFunc {
	return func(c echo.Context) error {
		status, scheduled, completion, err := parseTaskFields(c.FormValue("status"), c.FormValue("scheduledDate"), c.FormValue("completionDate"))
		if err != nil {
			return fail(c, err)
		}
		name := c.FormValue("task")
		if _, err := update(c, store, func(s *domain.Session) error {
			_, err := s.AddTask(name, scheduled, completion, status)
			return err
		}); err != nil {
			return fail(c, err)
		}
		broker.notify(sessionID(c))
		return redirectWithFlash(c, "/tasks", "Task added")
	}
}

// editTaskForm saves a row, or deletes it when the delete button was
// pressed. A delete never applies the row's edits.
func editTaskForm(store Store, broker *updateBroker) echo.HandlerFunc {
	return func(c echo.Context) error {
		pos, err := parsePosition(c)
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		if c.FormValue("action") == "delete" {
			if _, err := update(c, store, func(s *domain.Session) error {
				_, err := s.DeleteTask(pos)
				return err
			}); err != nil {
				return fail(c, err)
			}
			broker.notify(sessionID(c))
			return redirectWithFlash(c, "/tasks", "Task deleted")
		}

		status, scheduled, completion, err := parseTaskFields(c.FormValue("status"), c.FormValue("scheduledDate"), c.FormValue("completionDate"))
		if err != nil {
			return fail(c, err)
		}
		if _, err := update(c, store, func(s *domain.Session) error {
			return s.UpdateTask(pos, status, scheduled, completion)
		}); err != nil {
			return fail(c, err)
		}
		broker.notify(sessionID(c))
		return redirectWithFlash(c, "/tasks", "Task updated")
	}
}

func dashboardPage(store Store, sampler domain.Sampler, warmup int) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := update(c, store, tickSession(sampler, warmup))
		if err != nil {
			return fail(c, err)
		}
		data := newPageData(pageDashboard)
		data.Dashboard = domain.BuildDashboard(sess)
		return c.Render(http.StatusOK, "dashboard.html", data)
	}
}
