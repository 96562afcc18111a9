package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"pm-dashboard/domain"
)

// updateBroker wakes the dashboard streams of a session after its tasks change.
type updateBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func newUpdateBroker() *updateBroker {
	return &updateBroker{subs: make(map[string]map[chan struct{}]struct{})}
}

func (b *updateBroker) subscribe(sessionID string) chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan struct{}]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *updateBroker) unsubscribe(sessionID string, ch chan struct{}) {
	b.mu.Lock()
	delete(b.subs[sessionID], ch)
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
	b.mu.Unlock()
}

func (b *updateBroker) notify(sessionID string) {
	b.mu.Lock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

func (b *updateBroker) subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}

// streamDashboard pushes a dashboard view as a server-sent event on every
// tick, and an extra view without a tick whenever the session's tasks change.
func streamDashboard(store Store, sampler domain.Sampler, broker *updateBroker, interval time.Duration, warmup int, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := sessionID(c)
		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set(echo.HeaderCacheControl, "no-cache")
		res.Header().Set(echo.HeaderConnection, "keep-alive")
		res.Header().Set("X-Accel-Buffering", "no")
		flusher, ok := res.Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		res.WriteHeader(http.StatusOK)

		ctx := c.Request().Context()
		ch := broker.subscribe(id)
		defer broker.unsubscribe(id, ch)

		push := func(tick bool) error {
			var (
				sess domain.Session
				err  error
			)
			if tick {
				sess, err = store.Update(ctx, id, tickSession(sampler, warmup))
			} else {
				sess, err = store.Get(ctx, id)
			}
			if err != nil {
				return err
			}
			data, err := sonic.Marshal(domain.BuildDashboard(sess))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "event: dashboard\ndata: %s\n\n", data); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		}

		if err := push(true); err != nil {
			logger.WithError(err).WithField("session", id).Error("dashboard stream failed")
			return nil
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			var err error
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				err = push(true)
			case <-ch:
				err = push(false)
			}
			if err != nil {
				if ctx.Err() == nil {
					logger.WithError(err).WithField("session", id).Error("dashboard stream failed")
				}
				return nil
			}
		}
	}
}
