package engine

import (
	"context"
	"testing"

	"github.com/vetroster/oncall/pkg/eligibility"
	"github.com/vetroster/oncall/pkg/model"
)

func smallRoster() []model.Staff {
	maxConsec := 3
	return []model.Staff{
		{ID: "tfa1", Name: "Anke", Adult: true, Hours: 40, Role: model.RoleTFA, Department: model.DepartmentStation, Reception: true, NDPossible: true, NDAlone: false, NDMinConsecutive: 2, NDMaxConsecutive: &maxConsec},
		{ID: "tfa2", Name: "Bea", Adult: true, Hours: 40, Role: model.RoleTFA, Department: model.DepartmentOp, Reception: true, NDPossible: true, NDAlone: false, NDMinConsecutive: 2, NDMaxConsecutive: &maxConsec},
		{ID: "tfa3", Name: "Carla", Adult: true, Hours: 40, Role: model.RoleTFA, Department: model.DepartmentStation, Reception: false, NDPossible: true, NDAlone: false, NDMinConsecutive: 2, NDMaxConsecutive: &maxConsec},
		{ID: "azubi1", Name: "Dani", Adult: true, Hours: 40, Role: model.RoleAzubi, Department: model.DepartmentOther, Reception: false, NDPossible: true, NDAlone: false, NDMinConsecutive: 1},
	}
}

func TestNewBuilderBuildsOneVariablePerEligibleSlot(t *testing.T) {
	staff := smallRoster()
	start := model.NewDate(2026, 1, 1)
	end := start.AddDays(13)
	b := newBuilder(staff, start, end, eligibility.Absence{}, DefaultOptions())
	b.buildVariables()

	if len(b.x) == 0 {
		t.Fatal("expected at least one decision variable")
	}

	sat := model.NewDate(2026, 1, 3)
	if _, ok := b.xVar("azubi1", sat, model.KindSaturdayReception); ok {
		t.Error("azubi should not be eligible for the reception Saturday slot")
	}
	if _, ok := b.xVar("tfa1", sat, model.KindSaturdayLate); !ok {
		t.Error("expected tfa1 to be eligible for the late Saturday slot")
	}
}

func TestNightKindForWeekdayCoversEveryDayOfQuarter(t *testing.T) {
	staff := smallRoster()
	start := model.NewDate(2026, 1, 1)
	end := start.AddDays(13)
	b := newBuilder(staff, start, end, eligibility.Absence{}, DefaultOptions())
	b.buildVariables()

	for _, d := range b.dates {
		found := false
		for _, id := range b.staffIDs {
			if _, ok := b.xVar(id, d, model.NightKindForWeekday(d.Weekday())); ok {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no staff member eligible for the night on %s", d)
		}
	}
}

func TestBuildProducesANonNilModel(t *testing.T) {
	staff := smallRoster()
	start := model.NewDate(2026, 1, 1)
	end := start.AddDays(13)
	b := newBuilder(staff, start, end, eligibility.Absence{}, DefaultOptions())
	proto, err := b.build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if proto == nil {
		t.Fatal("expected a non-nil model proto")
	}
}

func TestBuildAbsencesIncludesVacationAndBirthday(t *testing.T) {
	birthday := &model.MonthDay{Month: 1, Day: 5}
	staff := []model.Staff{
		{ID: "tfa1", Role: model.RoleTFA, Hours: 40, Birthday: birthday},
	}
	start := model.NewDate(2026, 1, 1)
	end := start.AddDays(13)
	vacations := map[model.StaffID]map[model.Date]struct{}{
		"tfa1": {model.NewDate(2026, 1, 10): {}},
	}
	absences := buildAbsences(staff, start, end, vacations)

	if !absences.Has("tfa1", model.NewDate(2026, 1, 10)) {
		t.Error("expected vacation date to be an absence")
	}
	if !absences.Has("tfa1", model.NewDate(2026, 1, 5)) {
		t.Error("expected birthday to be an absence")
	}
	if absences.Has("tfa1", model.NewDate(2026, 1, 6)) {
		t.Error("did not expect an unrelated date to be an absence")
	}
}

// TestPreviousQuarterContext_RestForbidAndBlockContinuation builds a two-
// person roster spanning a quarter boundary: "solo" worked the previous
// quarter's final night and is owed rest on day one, while "backup" worked a
// trailing shift five days before the new quarter starts — close enough to
// fall inside the 14-day block-spacing window, but not the final night. With
// solo fully rested out of day one, backup is the only staff member left to
// cover that day's mandatory night, so the solve is only feasible if
// backup's day-one occupancy is correctly treated as a block continuation
// rather than banned outright by the block-spacing encoding.
func TestPreviousQuarterContext_RestForbidAndBlockContinuation(t *testing.T) {
	maxConsec := 3
	staff := []model.Staff{
		{ID: "solo", Name: "Solo", Adult: true, Hours: 40, Role: model.RoleTFA, Department: model.DepartmentStation, Reception: true, NDPossible: true, NDMinConsecutive: 2, NDMaxConsecutive: &maxConsec},
		{ID: "backup", Name: "Backup", Adult: true, Hours: 40, Role: model.RoleTFA, Department: model.DepartmentOp, Reception: true, NDPossible: true, NDMinConsecutive: 2, NDMaxConsecutive: &maxConsec},
	}
	start := model.NewDate(2026, 1, 1)
	end := start.AddDays(13)

	opts := DefaultOptions()
	opts.PreviousQuarter = &PreviousQuarterContext{
		TrailingLastNight: map[model.StaffID]bool{"solo": true},
		TrailingWorkDates: map[model.StaffID][]model.Date{"backup": {start.AddDays(-5)}},
	}

	b := newBuilder(staff, start, end, eligibility.Absence{}, opts)
	proto, err := b.build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	response, timedOut, err := solveModel(context.Background(), proto, opts)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if timedOut {
		t.Fatal("did not expect the solve to time out")
	}
	status := classifyStatus(response.GetStatus())
	if status != StatusOptimal && status != StatusFeasible {
		t.Fatalf("expected a feasible schedule with backup covering solo's rest day, got status %s", status)
	}

	sched := b.extractSchedule(response)
	for _, a := range sched.Assignments {
		if a.StaffID == "solo" && a.Slot.Date == start {
			t.Errorf("solo worked the previous quarter's final night and should be resting on %s, got assigned %s", start, a.Slot.Kind)
		}
	}

	backupCoveredStart := false
	for _, a := range sched.Assignments {
		if a.StaffID == "backup" && a.Slot.Date == start {
			backupCoveredStart = true
		}
	}
	if !backupCoveredStart {
		t.Error("expected backup to cover the mandatory night on the quarter's first day, since solo is resting and only backup remains eligible")
	}
}
