package model

import "testing"

func TestEffectiveNightWeight(t *testing.T) {
	azubi := Staff{Role: RoleAzubi}
	if got := azubi.EffectiveNightWeight(true); got != 1.0 {
		t.Fatalf("azubi paired weight: got %v, want 1.0", got)
	}

	tfa := Staff{Role: RoleTFA}
	if got := tfa.EffectiveNightWeight(true); got != 0.5 {
		t.Fatalf("tfa paired weight: got %v, want 0.5", got)
	}
	if got := tfa.EffectiveNightWeight(false); got != 1.0 {
		t.Fatalf("tfa solo weight: got %v, want 1.0", got)
	}
}

func TestForbidsWeekday(t *testing.T) {
	s := Staff{NDExceptions: map[int]struct{}{5: {}}}
	if !s.ForbidsWeekday(5) {
		t.Fatalf("expected weekday 5 to be forbidden")
	}
	if s.ForbidsWeekday(1) {
		t.Fatalf("expected weekday 1 to be allowed")
	}
}

func TestMonthDayDateIn(t *testing.T) {
	leap := MonthDay{Month: 2, Day: 29}
	if _, ok := leap.DateIn(2025); ok {
		t.Fatalf("expected Feb 29 to be invalid in a non-leap year")
	}
	d, ok := leap.DateIn(2024)
	if !ok || d != NewDate(2024, 2, 29) {
		t.Fatalf("expected Feb 29 to be valid in a leap year, got %v ok=%v", d, ok)
	}
}

func TestDefaultNDMinConsecutive(t *testing.T) {
	if got := DefaultNDMinConsecutive(RoleAzubi); got != 1 {
		t.Fatalf("azubi default: got %d, want 1", got)
	}
	if got := DefaultNDMinConsecutive(RoleTFA); got != 2 {
		t.Fatalf("tfa default: got %d, want 2", got)
	}
}
