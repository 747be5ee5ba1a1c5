package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"proctor/internal/broadcast"
	"proctor/internal/config"
	"proctor/internal/notifications"
)

func TestNewReturnsNopWithoutTopic(t *testing.T) {
	cfg := config.Default()
	n := notifications.New(cfg.Broadcast)
	if _, ok := n.(broadcast.Nop); !ok {
		t.Fatalf("expected broadcast.Nop, got %T", n)
	}
}

func TestNtfyFormatsPushes(t *testing.T) {
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name           string
		msg            broadcast.Message
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "suspension",
			msg: broadcast.StatusChangeMessage(7, "suspended", map[string]any{
				"reason": "max_warnings_exceeded",
			}, at),
			expectTitle:    "Proctor - Interview Suspended",
			expectMessage:  "Interview 7 suspended (max_warnings_exceeded)",
			expectTags:     "proctor,suspended",
			expectPriority: "high",
		},
		{
			name:          "critical violation",
			msg:           broadcast.ViolationMessage(7, "multiple_faces", "critical", "Faces: 2", at),
			expectTitle:   "Proctor - Critical Violation",
			expectMessage: "Interview 7: multiple_faces\nFaces: 2",
			expectTags:    "proctor,violation,critical",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Broadcast.NtfyTopic = server.URL

			if err := notifications.New(cfg.Broadcast).Publish(context.Background(), tc.msg); err != nil {
				t.Fatalf("Publish returned error: %v", err)
			}
			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyIgnoresRoutineMessages(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Broadcast.NtfyTopic = server.URL
	n := notifications.New(cfg.Broadcast)

	at := time.Now()
	for _, msg := range []broadcast.Message{
		broadcast.ViolationMessage(1, "gaze_away", "warning", "", at),
		broadcast.StatusChangeMessage(1, "interview_active", nil, at),
	} {
		if err := n.Publish(context.Background(), msg); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no pushes, got %d", calls.Load())
	}
}

func TestNtfyReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic is read-only", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Broadcast.NtfyTopic = server.URL
	msg := broadcast.StatusChangeMessage(3, "suspended", nil, time.Now())
	if err := notifications.New(cfg.Broadcast).Publish(context.Background(), msg); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
