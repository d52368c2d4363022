package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iconidentify/clipgrab/internal/repository"
	"github.com/iconidentify/clipgrab/internal/worker"
)

type mockSessions struct {
	stats *repository.SessionStats
	err   error
}

func (m *mockSessions) Count(ctx context.Context) (*repository.SessionStats, error) {
	return m.stats, m.err
}

type mockPool struct {
	stats worker.Stats
}

func (m *mockPool) Stats() worker.Stats { return m.stats }

func TestHealthHandler_Live(t *testing.T) {
	handler := NewHealthHandler(&mockSessions{}, nil, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.Live(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
	if resp.Timestamp == "" {
		t.Error("timestamp should not be empty")
	}
}

func TestHealthHandler_Ready_Success(t *testing.T) {
	sessions := &mockSessions{stats: &repository.SessionStats{
		Total:        3,
		CaptionReady: 2,
		Downloading:  1,
	}}
	pool := &mockPool{stats: worker.Stats{Workers: 4, Queued: 1, Active: 2, Completed: 10}}
	handler := NewHealthHandler(sessions, pool, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Sessions == nil {
		t.Fatal("session stats should not be nil")
	}
	if resp.Sessions.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Sessions.Total)
	}
	if resp.Sessions.Downloading != 1 {
		t.Errorf("downloading = %d, want 1", resp.Sessions.Downloading)
	}
	if resp.Workers == nil {
		t.Fatal("worker stats should not be nil")
	}
	if resp.Workers.Workers != 4 || resp.Workers.Active != 2 || resp.Workers.Completed != 10 {
		t.Errorf("workers = %+v", resp.Workers)
	}
}

func TestHealthHandler_Ready_Error(t *testing.T) {
	handler := NewHealthHandler(&mockSessions{err: errors.New("store unavailable")}, nil, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "error" {
		t.Errorf("status = %q, want %q", resp.Status, "error")
	}
}

func TestHealthHandler_Stats(t *testing.T) {
	dir := t.TempDir()
	handler := NewHealthHandler(&mockSessions{}, nil, dir)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var stats SystemStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if stats.TempPath != dir {
		t.Errorf("temp path = %q, want %q", stats.TempPath, dir)
	}
	if stats.NumCPU < 1 {
		t.Errorf("num_cpu = %d", stats.NumCPU)
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5m", "5m"},
		{"3h20m", "3h 20m"},
		{"50h5m", "2d 2h 5m"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, _ := time.ParseDuration(tt.in)
			if got := formatUptime(d); got != tt.want {
				t.Errorf("formatUptime(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
