// Package e2e exercises the roster engine end to end: solving a quarter,
// validating the result, and checking the fairness report it produces.
package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/vetroster/oncall/pkg/eligibility"
	"github.com/vetroster/oncall/pkg/engine"
	"github.com/vetroster/oncall/pkg/fairness"
	"github.com/vetroster/oncall/pkg/model"
	"github.com/vetroster/oncall/pkg/validator"
)

func clinicRoster() []model.Staff {
	maxConsec := 3
	return []model.Staff{
		{ID: "anika", Name: "Anika", Adult: true, Hours: 40, Role: model.RoleTFA, Department: model.DepartmentStation, Reception: true, NDPossible: true, NDMinConsecutive: 2, NDMaxConsecutive: &maxConsec},
		{ID: "bjoern", Name: "Bjoern", Adult: true, Hours: 40, Role: model.RoleTFA, Department: model.DepartmentOp, Reception: true, NDPossible: true, NDMinConsecutive: 2, NDMaxConsecutive: &maxConsec},
		{ID: "clara", Name: "Clara", Adult: true, Hours: 32, Role: model.RoleTFA, Department: model.DepartmentStation, Reception: true, NDPossible: true, NDMinConsecutive: 2, NDMaxConsecutive: &maxConsec},
		{ID: "dima", Name: "Dima", Adult: true, Hours: 40, Role: model.RoleTFA, Department: model.DepartmentOp, Reception: true, NDPossible: true, NDMinConsecutive: 2, NDMaxConsecutive: &maxConsec},
		{ID: "elif", Name: "Elif", Adult: true, Hours: 20, Role: model.RoleAzubi, Department: model.DepartmentStation, NDPossible: true, NDMinConsecutive: 1},
		{ID: "finn", Name: "Finn", Adult: true, Hours: 20, Role: model.RoleAzubi, Department: model.DepartmentOp, NDPossible: true, NDMinConsecutive: 1},
		{ID: "gita", Name: "Gita", Adult: true, Hours: 40, Role: model.RoleIntern, Department: model.DepartmentOther, NDPossible: false},
	}
}

func TestFullQuarterWorkflow(t *testing.T) {
	staff := clinicRoster()
	quarterStart := model.NewDate(2026, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := engine.DefaultOptions()
	opts.TimeLimit = 5 * time.Second

	result, err := engine.Solve(ctx, staff, quarterStart.Time(), nil, opts)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !result.Feasible {
		t.Fatalf("expected a feasible schedule, got status %s with %d violations", result.Status, len(result.Violations))
	}
	if result.Schedule == nil {
		t.Fatal("expected a schedule")
	}

	roster := make(map[model.StaffID]model.Staff, len(staff))
	for _, s := range staff {
		roster[s.ID] = s
	}

	validation := validator.Validate(result.Schedule, roster, eligibility.Absence{}, validator.Options{
		EnforceParticipation: opts.EnforceMinParticipation,
		QuarterStart:         result.Schedule.QuarterStart,
		QuarterEnd:           result.Schedule.QuarterEnd,
	})
	if validation.HasHardViolations() {
		t.Errorf("solved schedule fails validation: %+v", validation.Violations)
	}

	report := fairness.Compute(result.Schedule, roster, eligibility.Absence{}, result.Schedule.QuarterStart, result.Schedule.QuarterEnd)
	if len(report.Groups) == 0 {
		t.Error("expected at least one role group in the fairness report")
	}
	for _, g := range report.Groups {
		if g.Gini < 0 || g.Gini > 1 {
			t.Errorf("role %s: Gini coefficient %f out of [0,1] range", g.Role, g.Gini)
		}
	}
}

func TestFullQuarterWorkflow_HonorsVacations(t *testing.T) {
	staff := clinicRoster()
	quarterStart := model.NewDate(2026, 1, 1)

	vacationDay := quarterStart.AddDays(3).Time()
	vacations := map[model.StaffID]map[time.Time]struct{}{
		"anika": {vacationDay: struct{}{}},
	}

	opts := engine.DefaultOptions()
	opts.TimeLimit = 5 * time.Second

	result, err := engine.Solve(context.Background(), staff, quarterStart.Time(), vacations, opts)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !result.Feasible {
		t.Fatalf("expected a feasible schedule, got status %s", result.Status)
	}

	for _, a := range result.Schedule.Assignments {
		if a.StaffID == "anika" && a.Slot.Date.Time().Equal(vacationDay) {
			t.Errorf("anika was assigned %s despite being on vacation", a.Slot.Date)
		}
	}
}

func TestFullQuarterWorkflow_InsufficientNightCapacityIsReportedNotCrashed(t *testing.T) {
	staff := []model.Staff{
		{ID: "solo", Name: "Solo", Adult: true, Hours: 40, Role: model.RoleTFA, Department: model.DepartmentStation, Reception: true, NDPossible: false},
	}
	quarterStart := model.NewDate(2026, 1, 1)

	opts := engine.DefaultOptions()
	opts.TimeLimit = 5 * time.Second

	result, err := engine.Solve(context.Background(), staff, quarterStart.Time(), nil, opts)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if result.Feasible {
		t.Fatal("expected an infeasible result with a single staff member unable to work nights")
	}
	if len(result.UnsatisfiableConstraints) == 0 {
		t.Error("expected at least one unsatisfiable constraint to be reported")
	}
}
