package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"proctor/internal/analysis"
	"proctor/internal/broadcast"
	"proctor/internal/daemon"
	"proctor/internal/logging"
	"proctor/internal/store"
	"proctor/internal/testsupport"
	"proctor/internal/violation"
)

type steadyAnalyzer struct{}

func (steadyAnalyzer) Analyze(context.Context, analysis.FrameTask, []float32) (analysis.FrameResult, error) {
	return analysis.FrameResult{FaceCount: 1, Authorized: true}, nil
}

func (steadyAnalyzer) Close() error { return nil }

func steadyFactories() map[analysis.Kind]analysis.Factory {
	return map[analysis.Kind]analysis.Factory{
		analysis.KindFace: func(context.Context) (analysis.FrameAnalyzer, error) { return steadyAnalyzer{}, nil },
	}
}

func newDaemon(t *testing.T) (*daemon.Daemon, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, logging.NewNop(), steadyFactories())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, st
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func TestDaemonRunHoldsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, logging.NewNop(), steadyFactories())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	waitFor(t, 2*time.Second, d.Running)
	status := d.Status()
	if status.AdminAddress == "" {
		t.Fatal("expected admin listener address")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	// A second instance must not start while the first holds the lock.
	other, err := daemon.New(cfg, testsupport.MustOpenStore(t, cfg), logging.NewNop(), steadyFactories())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { other.Close() })
	if err := other.Run(ctx); err == nil {
		t.Fatal("expected second instance to fail")
	}

	resp, err := http.Get("http://" + status.AdminAddress + "/healthz")
	if err != nil {
		t.Fatalf("healthz request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if d.Running() {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestViolationsReachHub(t *testing.T) {
	d, st := newDaemon(t)
	session := testsupport.NewSession(t, st, 3)

	received := make(chan broadcast.Message, 4)
	unsubscribe := d.Hub().Subscribe(func(msg broadcast.Message) { received <- msg })
	defer unsubscribe()

	if _, err := d.Manager().AddViolation(context.Background(), session.ID, violation.EventTabSwitch, "", ""); err != nil {
		t.Fatalf("AddViolation: %v", err)
	}

	var types []string
	for len(types) < 2 {
		select {
		case msg := <-received:
			types = append(types, msg.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for broadcasts, got %v", types)
		}
	}
	seen := map[string]bool{}
	for _, typ := range types {
		seen[typ] = true
	}
	if !seen[broadcast.TypeViolation] || !seen[broadcast.TypeStatusChange] {
		t.Fatalf("expected violation and status_change, got %v", types)
	}
}

func TestAdminInterviewSummary(t *testing.T) {
	d, st := newDaemon(t)
	session := testsupport.NewSession(t, st, 3)
	handler := d.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/interviews/"+itoa(session.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if payload["current_status"] != string(store.StatusInterviewActive) {
		t.Fatalf("unexpected summary %v", payload)
	}

	cases := []struct {
		path string
		code int
	}{
		{"/api/interviews/9999", http.StatusNotFound},
		{"/api/interviews/abc", http.StatusBadRequest},
		{"/api/interviews/", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.code, rec.Code)
		}
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAdminStatusListsWorkers(t *testing.T) {
	d, _ := newDaemon(t)

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status daemon.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if len(status.Workers) != 1 || status.Workers[0].Kind != analysis.KindFace || !status.Workers[0].Alive {
		t.Fatalf("unexpected workers %#v", status.Workers)
	}
	if status.Running {
		t.Fatal("daemon is not running yet")
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
