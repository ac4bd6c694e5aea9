package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInstrumentPassesThrough(t *testing.T) {
	handler := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/1/id", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Fatalf("body altered: %q", rec.Body.String())
	}
}

func TestStatusWriterDefaults(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, code: 200}
	_, _ = sw.Write([]byte("ok"))
	if sw.code != 200 {
		t.Fatalf("implicit status lost: %d", sw.code)
	}

	rec = httptest.NewRecorder()
	sw = &statusWriter{ResponseWriter: rec, code: 200}
	sw.WriteHeader(http.StatusBadRequest)
	if sw.code != http.StatusBadRequest {
		t.Fatalf("explicit status lost: %d", sw.code)
	}
}
