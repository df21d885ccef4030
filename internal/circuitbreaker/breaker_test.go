package circuitbreaker

import (
	"testing"
	"time"
)

func TestBreaker_AllowWhenClosed(t *testing.T) {
	b := New(3, 100*time.Millisecond)
	if !b.Allow("balance") {
		t.Fatal("expected closed circuit to allow")
	}
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := New(3, 100*time.Millisecond)

	// 2 failures = still closed
	b.RecordFailure("balance")
	b.RecordFailure("balance")
	if !b.Allow("balance") {
		t.Fatal("should still allow before threshold")
	}

	// 3rd failure = open
	b.RecordFailure("balance")
	if b.Allow("balance") {
		t.Fatal("should be open after 3 failures")
	}
	if b.State("balance") != StateOpen {
		t.Fatalf("expected StateOpen, got %v", b.State("balance"))
	}
}

func TestBreaker_OpenToHalfOpenAfterDuration(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	b.RecordFailure("balance")
	b.RecordFailure("balance")
	if b.Allow("balance") {
		t.Fatal("should be open")
	}

	time.Sleep(60 * time.Millisecond)

	// Should transition to half-open and allow one probe.
	if !b.Allow("balance") {
		t.Fatal("should allow probe in half-open")
	}
	if b.State("balance") != StateHalfOpen {
		t.Fatalf("expected StateHalfOpen, got %v", b.State("balance"))
	}

	// Second request while half-open should be rejected.
	if b.Allow("balance") {
		t.Fatal("should reject second request in half-open")
	}
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	b.RecordFailure("balance")
	b.RecordFailure("balance")
	time.Sleep(60 * time.Millisecond)
	b.Allow("balance") // Transitions to half-open

	b.RecordSuccess("balance")
	if b.State("balance") != StateClosed {
		t.Fatalf("expected StateClosed after success, got %v", b.State("balance"))
	}
	if !b.Allow("balance") {
		t.Fatal("should allow after recovery")
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	b.RecordFailure("balance")
	b.RecordFailure("balance")
	time.Sleep(60 * time.Millisecond)
	b.Allow("balance") // Transitions to half-open

	b.RecordFailure("balance")
	if b.State("balance") != StateOpen {
		t.Fatalf("expected StateOpen after half-open failure, got %v", b.State("balance"))
	}
}

func TestBreaker_IndependentServices(t *testing.T) {
	b := New(2, 100*time.Millisecond)

	b.RecordFailure("balance")
	b.RecordFailure("balance")

	// balance is open, history should be unaffected.
	if b.Allow("balance") {
		t.Fatal("balance should be open")
	}
	if !b.Allow("history") {
		t.Fatal("history should be closed")
	}
}
