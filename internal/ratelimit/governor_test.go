package ratelimit

import (
	"testing"
	"time"
)

func TestGovernorAdmitsByDefault(t *testing.T) {
	g := NewGovernor()
	if !g.Admit(time.Unix(0, 0)) {
		t.Fatalf("Admit() = false, want true for fresh governor")
	}
}

func TestGovernorPenaltyWindow(t *testing.T) {
	g := NewGovernor()
	t0 := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	g.Penalize(t0, 20*time.Second)

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "at penalty start", now: t0, want: false},
		{name: "mid window", now: t0.Add(10 * time.Second), want: false},
		{name: "just before reopen", now: t0.Add(20*time.Second - time.Millisecond), want: false},
		{name: "at reopen", now: t0.Add(20 * time.Second), want: true},
		{name: "after reopen", now: t0.Add(time.Minute), want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := g.Admit(tc.now); got != tc.want {
				t.Fatalf("Admit(%s) = %v, want %v", tc.now.Format(time.RFC3339Nano), got, tc.want)
			}
		})
	}
}

func TestGovernorMonotonic(t *testing.T) {
	g := NewGovernor()
	t0 := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	g.Penalize(t0, 20*time.Second)
	// A shorter penalty issued later must not reopen the gate early.
	g.Penalize(t0.Add(time.Second), time.Second)
	if g.Admit(t0.Add(10 * time.Second)) {
		t.Fatalf("Admit() = true, want false: shorter penalty truncated the gate")
	}
	if !g.Admit(t0.Add(20 * time.Second)) {
		t.Fatalf("Admit() = false, want true at original reopen time")
	}
}

func TestGovernorZeroPenaltyIsNoop(t *testing.T) {
	g := NewGovernor()
	t0 := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	g.Penalize(t0, 0)
	g.Penalize(t0, -time.Second)
	if !g.Admit(t0) {
		t.Fatalf("Admit() = false, want true after zero/negative penalties")
	}
}

func TestGovernorRetryAfter(t *testing.T) {
	g := NewGovernor()
	t0 := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	if got := g.RetryAfter(t0); got != 0 {
		t.Fatalf("RetryAfter() = %s, want 0 for open gate", got)
	}
	g.Penalize(t0, 20*time.Second)
	if got := g.RetryAfter(t0.Add(5 * time.Second)); got != 15*time.Second {
		t.Fatalf("RetryAfter() = %s, want 15s", got)
	}
}
