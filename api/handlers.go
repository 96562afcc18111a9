package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"pm-dashboard/domain"
)

const (
	maxBodySize         = 64 << 10
	defaultTickInterval = 5 * time.Second
)

// Options carries the collaborators of the HTTP surface.
type Options struct {
	Store        Store
	Sampler      domain.Sampler
	Deduper      Deduper
	Auth         Authenticator
	Logger       *log.Logger
	TickInterval time.Duration
	WarmupTicks  int
	SecureCookie bool
}

// Register wires up all routes on the provided Echo instance.
func Register(e *echo.Echo, opts Options) error {
	if opts.Store == nil || opts.Sampler == nil {
		return errors.New("api: store and sampler are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	renderer, err := NewRenderer()
	if err != nil {
		return err
	}
	e.Renderer = renderer
	e.JSONSerializer = SonicSerializer{}

	broker := newUpdateBroker()
	store, sampler, logger := opts.Store, opts.Sampler, opts.Logger

	e.GET("/healthz", healthz(store))

	pages := e.Group("", SessionMiddleware(opts.Auth, opts.SecureCookie))
	pages.GET("/", selectPage)
	pages.GET("/tasks", tasksPage(store))
	pages.POST("/tasks", addTaskForm(store, broker))
	pages.POST("/tasks/:pos", editTaskForm(store, broker))
	pages.GET("/dashboard", dashboardPage(store, sampler, opts.WarmupTicks))

	rest := e.Group("/api", RequestMetrics(logger), GzipRequestMiddleware(), SessionMiddleware(opts.Auth, opts.SecureCookie))
	rest.GET("/tasks", getTasks(store))
	rest.POST("/tasks", postTask(store, opts.Deduper, broker, logger))
	rest.PUT("/tasks/:pos", putTask(store, broker))
	rest.DELETE("/tasks/:pos", deleteTask(store, broker))
	rest.POST("/kpi/tick", postTick(store, sampler))
	rest.GET("/dashboard", getDashboard(store, sampler, opts.WarmupTicks))

	// Streams stay open for the client's lifetime and carry no request span.
	e.GET("/api/dashboard/stream", streamDashboard(store, sampler, broker, opts.TickInterval, opts.WarmupTicks, logger),
		SessionMiddleware(opts.Auth, opts.SecureCookie))
	return nil
}

func healthz(store Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, err.Error())
		}
		return c.NoContent(http.StatusOK)
	}
}

// tickSession advances the KPI history by one tick, or by the warm-up
// count on a session that has never been simulated.
func tickSession(sampler domain.Sampler, warmup int) func(*domain.Session) error {
	return func(s *domain.Session) error {
		if !s.WarmUp(sampler, warmup) {
			s.Tick(sampler)
		}
		return nil
	}
}

func parsePosition(c echo.Context) (int, error) {
	pos, err := strconv.Atoi(strings.TrimSpace(c.Param("pos")))
	if err != nil {
		return 0, errors.New("invalid position")
	}
	return pos, nil
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseTaskFields validates the editable fields shared by forms and JSON.
func parseTaskFields(status, scheduled, completion string) (domain.Status, domain.Date, *domain.Date, error) {
	if strings.TrimSpace(status) == "" {
		status = string(domain.StatusPending)
	}
	st, err := domain.ParseStatus(status)
	if err != nil {
		return "", domain.Date{}, nil, err
	}
	sd, err := domain.ParseDate(scheduled)
	if err != nil {
		return "", domain.Date{}, nil, err
	}
	cd, err := domain.ParseOptionalDate(completion)
	if err != nil {
		return "", domain.Date{}, nil, err
	}
	return st, sd, cd, nil
}

// update runs fn against the request's session and records store timing.
func update(c echo.Context, store Store, fn func(*domain.Session) error) (domain.Session, error) {
	m := metricsFrom(c)
	start := time.Now()
	sess, err := store.Update(c.Request().Context(), sessionID(c), fn)
	m.ObserveStore(time.Since(start))
	if err == nil {
		m.SetSession(len(sess.Tasks), sess.History.Len())
	}
	return sess, err
}

func get(c echo.Context, store Store) (domain.Session, error) {
	m := metricsFrom(c)
	start := time.Now()
	sess, err := store.Get(c.Request().Context(), sessionID(c))
	m.ObserveStore(time.Since(start))
	if err == nil {
		m.SetSession(len(sess.Tasks), sess.History.Len())
	}
	return sess, err
}

func fail(c echo.Context, err error) error {
	status := statusFor(err)
	metricsFrom(c).Fail(errorStage(err), err)
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return c.String(status, err.Error())
}

func getTasks(store Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := get(c, store)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: domain.BuildTasks(sess).Tasks})
	}
}

func postTask(store Store, deduper Deduper, broker *updateBroker, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req taskRequest
		if err := decodeBody(c, &req); err != nil {
			metricsFrom(c).Fail("decode", err)
			return c.String(http.StatusBadRequest, "invalid body")
		}
		status, scheduled, completion, err := parseTaskFields(req.Status, req.ScheduledDate, req.CompletionDate)
		if err != nil {
			return fail(c, err)
		}

		ctx := c.Request().Context()
		id := sessionID(c)
		key := strings.TrimSpace(c.Request().Header.Get(IdempotencyHeader))
		if key != "" && deduper != nil {
			added, err := deduper.Add(ctx, id, key)
			if err != nil {
				metricsFrom(c).Fail("deduper", err)
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, "failed to check idempotency key")
			}
			if !added {
				metricsFrom(c).Fail("duplicate", nil)
				return c.String(http.StatusConflict, "duplicate submission")
			}
		}

		var pos int
		sess, err := update(c, store, func(s *domain.Session) error {
			var err error
			pos, err = s.AddTask(req.Task, scheduled, completion, status)
			return err
		})
		if err != nil {
			if key != "" && deduper != nil {
				if rerr := deduper.Remove(ctx, id, key); rerr != nil {
					logger.WithError(rerr).WithField("session", id).Warn("failed to release idempotency key")
				}
			}
			return fail(c, err)
		}
		broker.notify(id)
		return c.JSON(http.StatusCreated, taskResponse{Position: pos, Task: sess.Tasks[pos]})
	}
}

func putTask(store Store, broker *updateBroker) echo.HandlerFunc {
	return func(c echo.Context) error {
		pos, err := parsePosition(c)
		if err != nil {
			metricsFrom(c).Fail("validation", err)
			return c.String(http.StatusBadRequest, err.Error())
		}
		var req updateTaskRequest
		if err := decodeBody(c, &req); err != nil {
			metricsFrom(c).Fail("decode", err)
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(req.Status) == "" {
			return fail(c, domain.ErrInvalidStatus)
		}
		status, scheduled, completion, err := parseTaskFields(req.Status, req.ScheduledDate, req.CompletionDate)
		if err != nil {
			return fail(c, err)
		}
		sess, err := update(c, store, func(s *domain.Session) error {
			return s.UpdateTask(pos, status, scheduled, completion)
		})
		if err != nil {
			return fail(c, err)
		}
		broker.notify(sessionID(c))
		return c.JSON(http.StatusOK, taskResponse{Position: pos, Task: sess.Tasks[pos]})
	}
}

func deleteTask(store Store, broker *updateBroker) echo.HandlerFunc {
	return func(c echo.Context) error {
		pos, err := parsePosition(c)
		if err != nil {
			metricsFrom(c).Fail("validation", err)
			return c.String(http.StatusBadRequest, err.Error())
		}
		var removed domain.MaintenanceTask
		if _, err := update(c, store, func(s *domain.Session) error {
			var err error
			removed, err = s.DeleteTask(pos)
			return err
		}); err != nil {
			return fail(c, err)
		}
		broker.notify(sessionID(c))
		return c.JSON(http.StatusOK, taskResponse{Position: pos, Task: removed})
	}
}

func postTick(store Store, sampler domain.Sampler) echo.HandlerFunc {
	return func(c echo.Context) error {
		var obs domain.Observation
		sess, err := update(c, store, func(s *domain.Session) error {
			obs = s.Tick(sampler)
			return nil
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, tickResponse{Observation: obs, History: sess.History.Len()})
	}
}

func getDashboard(store Store, sampler domain.Sampler, warmup int) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := update(c, store, tickSession(sampler, warmup))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, domain.BuildDashboard(sess))
	}
}
