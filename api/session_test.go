package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func resolveSession(t *testing.T, req *http.Request) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var got string
	h := SessionMiddleware(nil, true)(func(c echo.Context) error {
		got = sessionID(c)
		return c.NoContent(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if err := h(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	return got, rec
}

func TestSessionMiddlewareMintsCookie(t *testing.T) {
	id, rec := resolveSession(t, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	if _, ok := validSessionID(id); !ok {
		t.Fatalf("expected a uuid session id, got %q", id)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName || cookies[0].Value != id {
		t.Fatalf("unexpected cookies: %#v", cookies)
	}
	if !cookies[0].HttpOnly || !cookies[0].Secure {
		t.Fatalf("expected HttpOnly secure cookie")
	}
}

func TestSessionMiddlewareReusesCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: testSession})
	id, rec := resolveSession(t, req)
	if id != testSession {
		t.Fatalf("expected cookie session, got %q", id)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("did not expect a new cookie")
	}
}

func TestSessionMiddlewareHeaderWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set(SessionHeader, testSession)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "0b8a0ad6-3b5e-4c39-9f0c-7d5c7bbf5a8e"})
	if id, _ := resolveSession(t, req); id != testSession {
		t.Fatalf("expected header session, got %q", id)
	}
}

func TestSessionMiddlewareRejectsMalformedIDs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set(SessionHeader, "../../etc")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "session:*"})
	id, rec := resolveSession(t, req)
	if id == "../../etc" || id == "session:*" {
		t.Fatalf("malformed id accepted: %q", id)
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Fatalf("expected a fresh cookie")
	}
}
