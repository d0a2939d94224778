package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/foodmarketplace/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	var seen string
	h := RequestID(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(requestIDHeader) != seen {
		t.Fatalf("expected generated request id echoed, got %q / %q", seen, rec.Header().Get(requestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc" {
		t.Fatalf("expected inbound request id kept, got %q", seen)
	}
}

func TestCartSessionResolution(t *testing.T) {
	var seen string
	h := CartSession(SessionOptions{CookieName: "fm", MaxAge: time.Hour}, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	t.Run("header wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(sessionHeader, "header-session-1")
		req.AddCookie(&http.Cookie{Name: "fm", Value: "cookie-session-1"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if seen != "header-session-1" {
			t.Fatalf("expected header session, got %q", seen)
		}
	})

	t.Run("cookie fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "fm", Value: "cookie-session-1"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if seen != "cookie-session-1" {
			t.Fatalf("expected cookie session, got %q", seen)
		}
	})

	t.Run("generated when invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(sessionHeader, "../../etc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if seen == "" || seen == "../../etc" {
			t.Fatalf("expected generated session, got %q", seen)
		}
		if rec.Header().Get(sessionHeader) != seen {
			t.Fatalf("expected session echoed in header")
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Value != seen || !cookies[0].HttpOnly {
			t.Fatalf("unexpected cookies %+v", cookies)
		}
	})
}

func TestRecovererWritesInternalError(t *testing.T) {
	h := Recoverer(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestLoggingRecordsStatus(t *testing.T) {
	h := Logging(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status passthrough, got %d", rec.Code)
	}
}
