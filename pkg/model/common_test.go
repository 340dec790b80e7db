package model

import (
	"encoding/json"
	"testing"
)

func TestDateAddDaysCrossesMonth(t *testing.T) {
	d := NewDate(2026, 1, 30)
	got := d.AddDays(3)
	want := NewDate(2026, 2, 2)
	if got != want {
		t.Fatalf("AddDays: got %s, want %s", got, want)
	}
}

func TestDateSub(t *testing.T) {
	a := NewDate(2026, 3, 10)
	b := NewDate(2026, 3, 1)
	if got := a.Sub(b); got != 9 {
		t.Fatalf("Sub: got %d, want 9", got)
	}
	if got := b.Sub(a); got != -9 {
		t.Fatalf("Sub reversed: got %d, want -9", got)
	}
}

func TestDateBeforeAfter(t *testing.T) {
	a := NewDate(2026, 1, 1)
	b := NewDate(2026, 1, 2)
	if !a.Before(b) || a.After(b) {
		t.Fatalf("expected a before b")
	}
	if !b.After(a) || b.Before(a) {
		t.Fatalf("expected b after a")
	}
}

func TestDateWeekday(t *testing.T) {
	// 2026-08-02 is a Sunday.
	d := NewDate(2026, 8, 2)
	if got := d.Weekday(); got != 7 {
		t.Fatalf("Weekday: got %d, want 7", got)
	}
	if !d.IsSunday() || d.IsSaturday() {
		t.Fatalf("expected IsSunday true, IsSaturday false")
	}
	sat := d.AddDays(-1)
	if !sat.IsSaturday() {
		t.Fatalf("expected the day before a Sunday to be Saturday")
	}
}

func TestDateString(t *testing.T) {
	d := NewDate(2026, 1, 5)
	if got := d.String(); got != "2026-01-05" {
		t.Fatalf("String: got %q", got)
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2026, 3, 31)
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"2026-03-31"` {
		t.Fatalf("Marshal: got %s", data)
	}

	var got Date
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != d {
		t.Fatalf("round trip: got %s, want %s", got, d)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, err := ParseDate("not-a-date"); err == nil {
		t.Fatal("expected an error for an invalid date string")
	}
}
