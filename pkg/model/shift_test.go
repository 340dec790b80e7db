package model

import "testing"

func TestNightKindForWeekday(t *testing.T) {
	if got := NightKindForWeekday(7); got != KindNightSunMon {
		t.Fatalf("Sunday start: got %v, want %v", got, KindNightSunMon)
	}
	if got := NightKindForWeekday(6); got != KindNightSatSun {
		t.Fatalf("Saturday start: got %v, want %v", got, KindNightSatSun)
	}
}

func TestIsNightIsWeekendDay(t *testing.T) {
	if !KindNightMonTue.IsNight() || KindNightMonTue.IsWeekendDay() {
		t.Fatalf("night kind misclassified")
	}
	if KindSaturdayReception.IsNight() || !KindSaturdayReception.IsWeekendDay() {
		t.Fatalf("weekend day kind misclassified")
	}
}

func TestScheduleStaffAssignmentsSorted(t *testing.T) {
	day1 := NewDate(2026, 1, 3)
	day2 := NewDate(2026, 1, 4)
	sched := &Schedule{
		Assignments: []Assignment{
			{StaffID: "anna", Slot: ShiftSlot{Kind: KindNightSatSun, Date: day1}},
			{StaffID: "anna", Slot: ShiftSlot{Kind: KindSaturdayReception, Date: day1}},
			{StaffID: "bob", Slot: ShiftSlot{Kind: KindSundayEarly, Date: day2}},
		},
	}
	got := sched.StaffAssignments("anna")
	if len(got) != 2 {
		t.Fatalf("expected 2 assignments for anna, got %d", len(got))
	}
	if got[0].Slot.Kind != KindSaturdayReception || got[1].Slot.Kind != KindNightSatSun {
		t.Fatalf("expected same-day kind order reception before night, got %v then %v", got[0].Slot.Kind, got[1].Slot.Kind)
	}
}

func TestScheduleEffectiveNights(t *testing.T) {
	day := NewDate(2026, 1, 5)
	roster := map[StaffID]Staff{
		"azubi1": {ID: "azubi1", Role: RoleAzubi},
		"tfa1":   {ID: "tfa1", Role: RoleTFA},
	}
	sched := &Schedule{
		Assignments: []Assignment{
			{StaffID: "azubi1", Slot: ShiftSlot{Kind: KindNightMonTue, Date: day}, Paired: true},
			{StaffID: "tfa1", Slot: ShiftSlot{Kind: KindNightMonTue, Date: day}, Paired: true},
		},
	}
	if got := sched.EffectiveNights("azubi1", roster); got != 1.0 {
		t.Fatalf("azubi effective nights: got %v, want 1.0", got)
	}
	if got := sched.EffectiveNights("tfa1", roster); got != 0.5 {
		t.Fatalf("tfa effective nights: got %v, want 0.5", got)
	}
}

func TestScheduleWeekendAndNotdienstCounts(t *testing.T) {
	day := NewDate(2026, 1, 3)
	sched := &Schedule{
		Assignments: []Assignment{
			{StaffID: "anna", Slot: ShiftSlot{Kind: KindSaturdayReception, Date: day}},
			{StaffID: "anna", Slot: ShiftSlot{Kind: KindNightSatSun, Date: day}},
		},
	}
	if got := sched.WeekendCount("anna"); got != 1 {
		t.Fatalf("WeekendCount: got %d, want 1", got)
	}
	if got := sched.TotalNotdienst("anna"); got != 1 {
		t.Fatalf("TotalNotdienst: got %d, want 1", got)
	}
}

func TestSlotAssignmentsPairedNight(t *testing.T) {
	day := NewDate(2026, 1, 3)
	slot := ShiftSlot{Kind: KindNightSatSun, Date: day}
	sched := &Schedule{
		Assignments: []Assignment{
			{StaffID: "anna", Slot: slot, Paired: true},
			{StaffID: "bob", Slot: slot, Paired: true},
		},
	}
	got := sched.SlotAssignments(slot)
	if len(got) != 2 {
		t.Fatalf("expected 2 assignments on paired night slot, got %d", len(got))
	}
}
