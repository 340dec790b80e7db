package engine

import (
	"context"
	"time"

	"github.com/vetroster/oncall/pkg/apperr"
	"github.com/vetroster/oncall/pkg/calendar"
	"github.com/vetroster/oncall/pkg/eligibility"
	"github.com/vetroster/oncall/pkg/logger"
	"github.com/vetroster/oncall/pkg/model"
	"github.com/vetroster/oncall/pkg/validator"
)

// Solve builds and searches the CP-SAT formulation for one quarter and
// returns the result. vacations gives, per staff member, the set of dates
// they are unavailable; birthdays are folded in automatically from each
// Staff record. Solve itself never mutates staff or touches storage — it is
// a pure function of its inputs plus whatever randomness the search uses
// internally.
func Solve(ctx context.Context, staff []model.Staff, quarterStartTime time.Time, vacations map[model.StaffID]map[time.Time]struct{}, opts Options) (Result, error) {
	quarterStart := model.DateFromTime(quarterStartTime)
	if !isQuarterStart(quarterStart) {
		return Result{}, apperr.InvalidInput("quarter_start", "must be the first day of January, April, July or October")
	}

	log := logger.NewRosterLogger()
	quarterEnd := calendar.QuarterEnd(quarterStart)

	absences := buildAbsences(staff, quarterStart, quarterEnd, convertVacations(vacations))
	roster := make(map[model.StaffID]model.Staff, len(staff))
	for _, s := range staff {
		roster[s.ID] = s
	}

	log.StartSolve(quarterStart.String(), len(staff), quarterEnd.Sub(quarterStart)+1)

	b := newBuilder(staff, quarterStart, quarterEnd, absences, opts)
	proto, err := b.build()
	if err != nil {
		return Result{}, err
	}

	if ctx.Err() != nil {
		return Result{Status: StatusUnknown, Cancelled: true}, nil
	}

	response, timedOut, err := solveModel(ctx, proto, opts)
	if err != nil {
		return Result{}, err
	}
	if timedOut {
		log.SolveComplete(quarterStart.String(), 0, false)
		return Result{Status: StatusUnknown, Cancelled: true}, nil
	}

	status := classifyStatus(response.GetStatus())
	result := Result{Status: status, Feasible: status == StatusOptimal || status == StatusFeasible}

	if !result.Feasible {
		result.UnsatisfiableConstraints = b.diagnoseInfeasibility()
		log.SolveComplete(quarterStart.String(), 0, false)
		return result, nil
	}

	sched := b.extractSchedule(response)
	result.Schedule = sched

	vr := validator.Validate(sched, roster, absences, validator.Options{
		EnforceParticipation: opts.EnforceMinParticipation,
		QuarterStart:         quarterStart,
		QuarterEnd:           quarterEnd,
	})
	result.Violations = vr.Violations
	result.SoftPenalty = vr.Penalty

	if vr.HasHardViolations() {
		for _, v := range vr.Violations {
			if v.Severity == validator.Hard {
				log.ConstraintViolation(v.Rule, v.Message)
			}
		}
		log.SolveComplete(quarterStart.String(), 0, false)
		return result, apperr.New(apperr.CodeInternal, "solved schedule fails validation")
	}

	log.SolveComplete(quarterStart.String(), 0, true)
	return result, nil
}

func isQuarterStart(d model.Date) bool {
	return d.Day == 1 && (d.Month == 1 || d.Month == 4 || d.Month == 7 || d.Month == 10)
}

// convertVacations maps the external time.Time-keyed vacation sets onto the
// engine's internal model.Date representation.
func convertVacations(vacations map[model.StaffID]map[time.Time]struct{}) map[model.StaffID]map[model.Date]struct{} {
	out := make(map[model.StaffID]map[model.Date]struct{}, len(vacations))
	for staffID, days := range vacations {
		converted := make(map[model.Date]struct{}, len(days))
		for t := range days {
			converted[model.DateFromTime(t)] = struct{}{}
		}
		out[staffID] = converted
	}
	return out
}

// buildAbsences merges vacation dates with each staff member's birthday (if
// it falls inside the quarter) into a single lookup table.
func buildAbsences(staff []model.Staff, quarterStart, quarterEnd model.Date, vacations map[model.StaffID]map[model.Date]struct{}) eligibility.Absence {
	absences := make(eligibility.Absence, len(staff))
	for _, s := range staff {
		days := make(map[model.Date]struct{})
		for d := range vacations[s.ID] {
			if !d.Before(quarterStart) && !d.After(quarterEnd) {
				days[d] = struct{}{}
			}
		}
		if s.Birthday != nil {
			for year := quarterStart.Year; year <= quarterEnd.Year; year++ {
				if bd, ok := s.Birthday.DateIn(year); ok && !bd.Before(quarterStart) && !bd.After(quarterEnd) {
					days[bd] = struct{}{}
				}
			}
		}
		if len(days) > 0 {
			absences[s.ID] = days
		}
	}
	return absences
}
