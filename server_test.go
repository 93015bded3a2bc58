package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func explicitHandler(t *testing.T) (http.Handler, string, string) {
	t.Helper()
	dir := t.TempDir()
	good := writeFile(t, dir, "app.collapsed", "a.Main.main;a.Worker.work;a.Worker.leaf 3\na.Main.main;a.Worker.leaf 2\n")
	bad := writeFile(t, dir, "junk.bin", "not a profile")

	reg := newRegistry([]string{good, bad}, "", "cpu", zerolog.Nop())
	if err := reg.load(); err != nil {
		t.Fatal(err)
	}
	return newServer(reg, zerolog.Nop(), false).handler(), good, bad
}

// ---------------------------------------------------------------------------
// Index
// ---------------------------------------------------------------------------

func TestIndexListsCaptures(t *testing.T) {
	h, good, bad := explicitHandler(t)
	w := get(t, h, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()

	wantHref := `href="/capture/` + url.PathEscape(good) + `"`
	if !strings.Contains(body, wantHref) {
		t.Errorf("index missing capture link %s:\n%s", wantHref, body)
	}
	if !strings.Contains(body, "Unsupported files:") || !strings.Contains(body, bad) {
		t.Errorf("index missing unsupported listing:\n%s", body)
	}
}

func TestIndexOnlyAtRoot(t *testing.T) {
	h, _, _ := explicitHandler(t)
	if w := get(t, h, "/nope"); w.Code != http.StatusNotFound {
		t.Errorf("GET /nope status = %d, want 404", w.Code)
	}
}

func TestIndexWatchRescan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.collapsed", sampleStacks)

	reg := newRegistry(nil, dir, "cpu", zerolog.Nop())
	h := newServer(reg, zerolog.Nop(), false).handler()

	if body := get(t, h, "/").Body.String(); !strings.Contains(body, "a.collapsed") {
		t.Fatalf("first scan missing a.collapsed:\n%s", body)
	}

	writeFile(t, dir, "b.collapsed", sampleStacks)
	if body := get(t, h, "/").Body.String(); !strings.Contains(body, "b.collapsed") {
		t.Errorf("rescan missed new capture:\n%s", body)
	}
}

// ---------------------------------------------------------------------------
// Capture pages
// ---------------------------------------------------------------------------

func TestCapturePage(t *testing.T) {
	h, good, _ := explicitHandler(t)
	w := get(t, h, "/capture/"+url.PathEscape(good))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()

	if !strings.Contains(body, "Ordered by: cumulative time") {
		t.Errorf("default sort should be cumulative:\n%s", body)
	}
	if !strings.Contains(body, `<a href="?sort=calls">ncalls</a>`) {
		t.Errorf("missing header sort link:\n%s", body)
	}
	if strings.Contains(body, "Called By:") {
		t.Errorf("drill-down sections rendered without func_name:\n%s", body)
	}
}

func TestCapturePageSortParam(t *testing.T) {
	h, good, _ := explicitHandler(t)
	w := get(t, h, "/capture/"+url.PathEscape(good)+"?sort=calls")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Ordered by: call count") {
		t.Errorf("sort param ignored:\n%s", w.Body.String())
	}
}

func TestCapturePageDrillDown(t *testing.T) {
	h, good, _ := explicitHandler(t)
	target := "/capture/" + url.PathEscape(good) + "?func_name=" + url.QueryEscape("a.Worker:0(leaf)")
	w := get(t, h, target)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()

	for _, want := range []string{
		"List reduced from",
		"Called By:",
		"Function was called by...",
		"Called:",
		"Function called...",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("drill-down page missing %q:\n%s", want, body)
		}
	}
}

func TestCapturePageErrors(t *testing.T) {
	h, good, bad := explicitHandler(t)
	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown capture", "/capture/missing.prof", http.StatusNotFound},
		{"unsupported capture", "/capture/" + url.PathEscape(bad), http.StatusNotFound},
		{"empty name", "/capture/", http.StatusNotFound},
		{"bad sort key", "/capture/" + url.PathEscape(good) + "?sort=bogus", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := get(t, h, tt.target); w.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.name, w.Code, tt.status)
		}
	}
}
