package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/icodeforyou/ews-go/ews"
	"github.com/icodeforyou/ews-go/hours"
)

func newServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("..", "..", "ews", "testdata", "example.json"))
	if err != nil {
		t.Fatalf("failed to read example: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("display:\n  timezone: Europe/Berlin\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", path, "--endpoint", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestAuthCommand(t *testing.T) {
	srv := newServer(t, http.StatusOK)

	out, err := execute(t, srv, "auth", "--api-key", "good")
	if err != nil {
		t.Fatalf("auth error: %v", err)
	}
	if !strings.Contains(out, "accepted") {
		t.Errorf("expected key to be accepted, got %q", out)
	}

	_, err = execute(t, srv, "auth", "--api-key", "bad")
	if !errors.Is(err, ews.ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials, got %v", err)
	}
}

func TestPricesCommand(t *testing.T) {
	srv := newServer(t, http.StatusOK)

	out, err := execute(t, srv, "prices", "--api-key", "good", "--date", "2025-12-08")
	if err != nil {
		t.Fatalf("prices error: %v", err)
	}
	for _, want := range []string{"2025-12-08 00:00", "31.50", "29.65", "29.10", "ct/kWh"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "31.93") {
		t.Errorf("expected no prices of the next day, got:\n%s", out)
	}

	out, err = execute(t, srv, "prices", "--api-key", "good", "--date", "2030-01-01")
	if err != nil {
		t.Fatalf("prices error: %v", err)
	}
	if !strings.Contains(out, "no prices for 2030-01-01") {
		t.Errorf("expected empty day message, got %q", out)
	}

	if _, err := execute(t, srv, "prices", "--api-key", "good", "--date", "08.12.2025"); err == nil {
		t.Errorf("expected error for a malformed date")
	}
}

func TestParseDay(t *testing.T) {
	today := hours.Date{Year: 2025, Month: time.December, Day: 31}

	tests := []struct {
		value    string
		expected hours.Date
	}{
		{"", today},
		{"today", today},
		{"tomorrow", hours.Date{Year: 2026, Month: time.January, Day: 1}},
		{"2025-12-08", hours.Date{Year: 2025, Month: time.December, Day: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseDay(tt.value, today)
			if err != nil {
				t.Fatalf("parseDay() error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("parseDay(%q) expected %v, got %v", tt.value, tt.expected, got)
			}
		})
	}

	if _, err := parseDay("yesterday", today); err == nil {
		t.Errorf("expected error for an unknown day")
	}
}

func TestPricesCommandJson(t *testing.T) {
	srv := newServer(t, http.StatusOK)

	out, err := execute(t, srv, "prices", "--api-key", "good", "--date", "2025-12-09", "--json")
	if err != nil {
		t.Fatalf("prices error: %v", err)
	}

	var prices []ews.PricePoint
	if err := json.Unmarshal([]byte(out), &prices); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if len(prices) != 2 || prices[0].TotalPrice != 31.93 || prices[1].TotalPrice != 32.73 {
		t.Errorf("unexpected prices %+v", prices)
	}
}

func TestNowCommand(t *testing.T) {
	srv := newServer(t, http.StatusOK)

	tests := []struct {
		at       string
		expected string
	}{
		{"2025-12-08T00:30:00+01:00", "31.50 ct/kWh"},
		{"2025-12-08T02:15:00+01:00", "29.10 ct/kWh"},
		{"2025-12-08T23:30:00Z", "31.93 ct/kWh"},
	}

	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			out, err := execute(t, srv, "now", "--api-key", "good", "--at", tt.at)
			if err != nil {
				t.Fatalf("now error: %v", err)
			}
			if strings.TrimSpace(out) != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, out)
			}
		})
	}

	if _, err := execute(t, srv, "now", "--api-key", "good", "--at", "2025-12-09T01:30:00+01:00"); err == nil {
		t.Errorf("expected error after the last price")
	}
}

func TestNowCommandReportsFailure(t *testing.T) {
	srv := newServer(t, http.StatusServiceUnavailable)

	_, err := execute(t, srv, "now", "--api-key", "good")
	if !errors.Is(err, ews.ErrInternal) {
		t.Errorf("expected internal error, got %v", err)
	}
}
