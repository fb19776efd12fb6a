package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"bogus": LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%d want=%d", in, got, want)
		}
	}
}

func TestRequestLogLevel_QueryAndHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/models?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query level=%d", got)
	}
	r = httptest.NewRequest(http.MethodGet, "/api/models?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query shorthand level=%d", got)
	}
	r = httptest.NewRequest(http.MethodGet, "/api/models", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header level=%d", got)
	}
}

func TestLoggingLineWriter_SplitsLines(t *testing.T) {
	lw := &loggingLineWriter{}
	if _, err := lw.Write([]byte("{\"token\":\"a\"}\n{\"tok")); err != nil {
		t.Fatal(err)
	}
	if _, err := lw.Write([]byte("en\":\"b\"}\n")); err != nil {
		t.Fatal(err)
	}
	if len(lw.buf) != 0 {
		t.Fatalf("unflushed buf=%q", lw.buf)
	}
}
