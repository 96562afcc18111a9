package api

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"pm-dashboard/storage"
)

func gzipBody(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return &buf
}

func TestGzipRequestBody(t *testing.T) {
	e := newTestServer(t, storage.NewMemory(0), steadySampler())

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", gzipBody(t, `{"task":"Grease Chain","scheduledDate":"2024-01-10"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	req.Header.Set(SessionHeader, testSession)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Grease Chain") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestGzipRequestBodyInvalid(t *testing.T) {
	e := newTestServer(t, storage.NewMemory(0), steadySampler())

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader("not gzip"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	req.Header.Set(SessionHeader, testSession)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAcceptsEncoding(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{header: "", want: false},
		{header: "gzip", want: true},
		{header: "identity, GZIP", want: true},
		{header: "br", want: false},
	}
	for _, tt := range tests {
		if got := acceptsEncoding(tt.header, "gzip"); got != tt.want {
			t.Fatalf("acceptsEncoding(%q) = %v want %v", tt.header, got, tt.want)
		}
	}
}
