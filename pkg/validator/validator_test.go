package validator

import (
	"testing"

	"github.com/vetroster/oncall/pkg/eligibility"
	"github.com/vetroster/oncall/pkg/model"
)

func TestCheckSameDayDoubleBooking(t *testing.T) {
	day := model.NewDate(2026, 1, 3)
	sched := &model.Schedule{
		Assignments: []model.Assignment{
			{StaffID: "anna", Slot: model.ShiftSlot{Kind: model.KindSaturdayReception, Date: day}},
			{StaffID: "anna", Slot: model.ShiftSlot{Kind: model.KindNightSatSun, Date: day}},
		},
	}
	v := checkSameDayDoubleBooking(sched)
	if len(v) != 1 {
		t.Fatalf("expected 1 double-booking violation, got %d", len(v))
	}
}

func TestCheckAzubiPairingUnpaired(t *testing.T) {
	day := model.NewDate(2026, 1, 5)
	sched := &model.Schedule{
		Assignments: []model.Assignment{
			{StaffID: "azubi1", Slot: model.ShiftSlot{Kind: model.KindNightMonTue, Date: day}},
		},
	}
	roster := map[model.StaffID]model.Staff{"azubi1": {ID: "azubi1", Role: model.RoleAzubi}}
	v := checkAzubiPairing(sched, roster)
	if len(v) != 1 {
		t.Fatalf("expected 1 pairing violation, got %d", len(v))
	}
}

func TestCheckRestAfterNight(t *testing.T) {
	day := model.NewDate(2026, 1, 5)
	sched := &model.Schedule{
		Assignments: []model.Assignment{
			{StaffID: "tfa1", Slot: model.ShiftSlot{Kind: model.KindNightMonTue, Date: day}},
			{StaffID: "tfa1", Slot: model.ShiftSlot{Kind: model.KindNightTueWed, Date: day.AddDays(1)}},
		},
	}
	v := checkRestAfterNight(sched)
	if len(v) != 1 {
		t.Fatalf("expected 1 rest violation, got %d", len(v))
	}
}

func TestCheckBlockSpacingTooClose(t *testing.T) {
	day1 := model.NewDate(2026, 1, 3)
	day2 := day1.AddDays(7)
	sched := &model.Schedule{
		Assignments: []model.Assignment{
			{StaffID: "tfa1", Slot: model.ShiftSlot{Kind: model.KindSaturdayReception, Date: day1}},
			{StaffID: "tfa1", Slot: model.ShiftSlot{Kind: model.KindSundayEarly, Date: day2}},
		},
	}
	v := checkBlockSpacing(sched)
	if len(v) != 1 {
		t.Fatalf("expected 1 block spacing violation, got %d", len(v))
	}
}

func TestValidateMinimalFixtureHasNoDoubleBooking(t *testing.T) {
	quarterStart := model.NewDate(2026, 1, 1) // Thursday
	quarterEnd := quarterStart.AddDays(6)

	roster := map[model.StaffID]model.Staff{
		"tfa1": {ID: "tfa1", Role: model.RoleTFA, Adult: true, Hours: 40, NDPossible: true, NDMinConsecutive: 0},
		"tfa2": {ID: "tfa2", Role: model.RoleTFA, Adult: true, Hours: 40, NDPossible: true, NDMinConsecutive: 0},
	}
	absences := eligibility.Absence{}

	// Saturday 2026-01-03 within range.
	sat := model.NewDate(2026, 1, 3)

	assignments := []model.Assignment{
		{StaffID: "tfa1", Slot: model.ShiftSlot{Kind: model.KindSaturdayReception, Date: sat}},
		{StaffID: "tfa2", Slot: model.ShiftSlot{Kind: model.KindSaturdayLate, Date: sat}},
	}

	sched := &model.Schedule{QuarterStart: quarterStart, QuarterEnd: quarterEnd, Assignments: assignments}
	result := Validate(sched, roster, absences, Options{QuarterStart: quarterStart, QuarterEnd: quarterEnd})

	foundDoubleBooking := false
	for _, v := range result.Violations {
		if v.Rule == "double_booking" {
			foundDoubleBooking = true
		}
	}
	if foundDoubleBooking {
		t.Fatalf("unexpected double-booking violation in minimal fixture")
	}
}
