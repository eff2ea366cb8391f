package ledger

import (
	"testing"
	"time"
)

func TestClampSettled(t *testing.T) {
	cases := []struct {
		name            string
		settled, amount int64
		want            int64
	}{
		{"inside", 50, 100, 50},
		{"zero", 0, 100, 0},
		{"exact", 100, 100, 100},
		{"over", 150, 100, 100},
		{"negative", -20, 100, 0},
		{"shrunk amount", 80, 30, 30},
		{"zero amount", 10, 0, 0},
	}
	for _, tc := range cases {
		if got := ClampSettled(tc.settled, tc.amount); got != tc.want {
			t.Errorf("%s: clamp(%d, %d) = %d, want %d", tc.name, tc.settled, tc.amount, got, tc.want)
		}
	}
}

func TestOutstandingAndDeferred(t *testing.T) {
	e := Entry{AmountMinor: 1000, SettledMinor: 400}
	if got := e.OutstandingMinor(); got != 600 {
		t.Fatalf("outstanding = %d, want 600", got)
	}
	if !e.Deferred() {
		t.Fatalf("expected deferred")
	}
	e.SettledMinor = 1000
	if e.OutstandingMinor() != 0 || e.Deferred() {
		t.Fatalf("fully settled entry must not be deferred")
	}
	// settled beyond amount still floors at zero
	e.SettledMinor = 1200
	if e.OutstandingMinor() != 0 {
		t.Fatalf("outstanding must never go negative")
	}
}

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2024, 3, 15, 1, 30, 45, 999, loc)
	got := DateOnly(in)
	want := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("DateOnly = %v, want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Fatalf("DateOnly must return UTC")
	}
}

func TestKindValid(t *testing.T) {
	if !KindIncome.Valid() || !KindExpense.Valid() {
		t.Fatalf("expected both kinds valid")
	}
	if Kind("transfer").Valid() || Kind("").Valid() {
		t.Fatalf("unexpected kind accepted")
	}
}
