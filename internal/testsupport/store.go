package testsupport

import (
	"context"
	"testing"

	"proctor/internal/config"
	"proctor/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewSession creates an interview session in the active state.
func NewSession(t testing.TB, st *store.Store, maxWarnings int) *store.InterviewSession {
	t.Helper()

	session, err := st.CreateSession(context.Background(), store.NewSession{
		CandidateName: "Test Candidate",
		MaxWarnings:   maxWarnings,
		Status:        store.StatusInterviewActive,
	})
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return session
}
