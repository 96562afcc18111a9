package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"pm-dashboard/domain"
	"pm-dashboard/storage"
)

type flushRecorder struct {
	*httptest.ResponseRecorder
	mu      sync.Mutex
	flushed chan struct{}
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{ResponseRecorder: httptest.NewRecorder(), flushed: make(chan struct{}, 16)}
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) Flush() {
	select {
	case f.flushed <- struct{}{}:
	default:
	}
}

func (f *flushRecorder) events(t *testing.T) []domain.DashboardView {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DashboardView
	sc := bufio.NewScanner(strings.NewReader(f.Body.String()))
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var v domain.DashboardView
		if err := sonic.UnmarshalString(strings.TrimPrefix(line, "data: "), &v); err != nil {
			t.Fatalf("invalid event payload: %v", err)
		}
		out = append(out, v)
	}
	return out
}

func waitFlush(t *testing.T, rec *flushRecorder) {
	t.Helper()
	select {
	case <-rec.flushed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestStreamDashboardPushesTicksAndUpdates(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := storage.NewMemory(0)
	broker := newUpdateBroker()
	handler := streamDashboard(store, steadySampler(), broker, time.Hour, 0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stream", nil).WithContext(ctx)
	rec := newFlushRecorder()
	c := e.NewContext(req, rec)
	c.Set(sessionContextKey, testSession)

	done := make(chan error, 1)
	go func() { done <- handler(c) }()

	waitFlush(t, rec)
	if n := broker.subscribers(testSession); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
	if _, err := store.Update(ctx, testSession, func(s *domain.Session) error {
		_, err := s.DeleteTask(0)
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	broker.notify(testSession)
	waitFlush(t, rec)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stream returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not stop after cancel")
	}
	if n := broker.subscribers(testSession); n != 0 {
		t.Fatalf("expected subscription to be released, got %d", n)
	}

	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	events := rec.events(t)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Observations != 1 || events[1].Observations != 1 {
		t.Fatalf("task updates must not tick: %d, %d", events[0].Observations, events[1].Observations)
	}
	if events[0].Completion.Display != "80.00%" || events[1].Completion.Display != "75.00%" {
		t.Fatalf("unexpected completion: %q, %q", events[0].Completion.Display, events[1].Completion.Display)
	}
}

func TestStreamDashboardTicksOnInterval(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := storage.NewMemory(0)
	handler := streamDashboard(store, steadySampler(), newUpdateBroker(), 5*time.Millisecond, 0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stream", nil).WithContext(ctx)
	rec := newFlushRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set(sessionContextKey, testSession)

	done := make(chan error, 1)
	go func() { done <- handler(c) }()
	for i := 0; i < 3; i++ {
		waitFlush(t, rec)
	}
	cancel()
	<-done

	sess, _ := store.Get(context.Background(), testSession)
	if sess.History.Len() < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", sess.History.Len())
	}
}

func TestBrokerNotifyDoesNotBlock(t *testing.T) {
	b := newUpdateBroker()
	ch := b.subscribe("s")
	b.notify("s")
	b.notify("s")
	b.notify("other")
	if len(ch) != 1 {
		t.Fatalf("expected one pending wake-up, got %d", len(ch))
	}
	b.unsubscribe("s", ch)
	if b.subscribers("s") != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestStreamDashboardIsNotTraced(t *testing.T) {
	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	e := newTestServer(t, storage.NewMemory(0), steadySampler())
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stream", nil).WithContext(ctx)
	req.Header.Set(SessionHeader, testSession)
	rec := newFlushRecorder()

	done := make(chan struct{})
	go func() {
		e.ServeHTTP(rec, req)
		close(done)
	}()
	waitFlush(t, rec)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not stop after cancel")
	}

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}
	if n := len(exporter.GetSpans()); n != 0 {
		t.Fatalf("expected no request span for the stream, got %d", n)
	}
	if events := rec.events(t); len(events) != 1 || events[0].Observations != 1 {
		t.Fatalf("unexpected events: %#v", events)
	}
}
