package web

import (
	"testing"
	"time"
)

func TestStateIssueAndConsume(t *testing.T) {
	s := NewStateStore()

	state, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if state == "" {
		t.Fatal("Issue() returned empty state")
	}

	if !s.Consume(state) {
		t.Error("Consume() = false for freshly issued state")
	}
	if s.Consume(state) {
		t.Error("Consume() = true for already consumed state")
	}
}

func TestStateUnknown(t *testing.T) {
	s := NewStateStore()
	if s.Consume("never-issued") {
		t.Error("Consume() = true for unknown state")
	}
}

func TestStateExpiry(t *testing.T) {
	s := NewStateStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	state, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	now = now.Add(stateTTL + time.Second)
	if s.Consume(state) {
		t.Error("Consume() = true for expired state")
	}
}

func TestStateIndependentFlows(t *testing.T) {
	s := NewStateStore()

	first, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	second, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if first == second {
		t.Fatal("Issue() returned the same state twice")
	}

	// Consuming one flow's state leaves the other valid.
	if !s.Consume(second) {
		t.Error("Consume(second) = false")
	}
	if !s.Consume(first) {
		t.Error("Consume(first) = false")
	}
}
