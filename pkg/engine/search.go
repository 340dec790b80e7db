package engine

import (
	"context"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"

	"github.com/vetroster/oncall/pkg/model"
)

func classifyStatus(status cmpb.CpSolverStatus) Status {
	switch status {
	case cmpb.CpSolverStatus_OPTIMAL:
		return StatusOptimal
	case cmpb.CpSolverStatus_FEASIBLE:
		return StatusFeasible
	case cmpb.CpSolverStatus_INFEASIBLE:
		return StatusInfeasible
	default:
		return StatusUnknown
	}
}

// extractSchedule reads the solved assignment out of response into a
// model.Schedule, deriving each night assignment's Paired flag from how
// many staff ended up on that night's slot rather than from the paired[]
// linking variables, since the output only needs the fact, not the proof.
func (b *builder) extractSchedule(response *cmpb.CpSolverResponse) *model.Schedule {
	sched := &model.Schedule{QuarterStart: b.quarterStart, QuarterEnd: b.quarterEnd}

	nightOccupants := make(map[model.Date][]model.StaffID)
	for key, v := range b.x {
		if !cpmodel.SolutionBooleanValue(response, v) {
			continue
		}
		if key.kind.IsNight() {
			nightOccupants[key.date] = append(nightOccupants[key.date], key.staff)
		}
		sched.Assignments = append(sched.Assignments, model.Assignment{
			StaffID: key.staff,
			Slot:    model.ShiftSlot{Kind: key.kind, Date: key.date},
		})
	}

	paired := make(map[model.Date]bool)
	for d, occupants := range nightOccupants {
		paired[d] = len(occupants) == 2
	}
	for i := range sched.Assignments {
		a := &sched.Assignments[i]
		if a.Slot.Kind.IsNight() && paired[a.Slot.Date] {
			a.Paired = true
		}
	}

	return sched
}

// diagnoseInfeasibility produces a best-effort set of human-readable causes
// when the solver proves no feasible schedule exists. It re-derives raw
// capacity per night and per weekend slot from the same variable set the
// model was built from, since the solver itself gives no explanation.
func (b *builder) diagnoseInfeasibility() []UnsatisfiableConstraint {
	var out []UnsatisfiableConstraint
	for _, d := range b.dates {
		k := model.NightKindForWeekday(d.Weekday())
		if len(b.nightVarsOnDate(d)) == 0 {
			out = append(out, UnsatisfiableConstraint{
				Kind:    InsufficientNightCapacity,
				Dates:   []model.Date{d},
				Message: "no staff member is eligible for the " + string(k) + " night on " + d.String(),
			})
		}
		for _, dk := range daytimeKinds(d) {
			found := false
			for _, staffID := range b.staffIDs {
				if _, ok := b.xVar(staffID, d, dk); ok {
					found = true
					break
				}
			}
			if !found {
				out = append(out, UnsatisfiableConstraint{
					Kind:    InsufficientWeekendCapacity,
					Dates:   []model.Date{d},
					Message: "no staff member is eligible for " + string(dk) + " on " + d.String(),
				})
			}
		}
	}
	if len(out) == 0 {
		out = append(out, UnsatisfiableConstraint{
			Kind:    Generic,
			Message: "the solver proved infeasibility; no single capacity gap explains it, check block-spacing and pairing constraints together",
		})
	}
	return out
}

// solveModel runs the solver against proto, enforcing opts.TimeLimit and ctx
// cancellation at the Go level rather than inside the search itself: this
// pack's cpmodel Go binding exposes only the parameterless SolveCpModel
// entrypoint, with no parameterized variant to hand it a time limit, random
// seed, or worker count, see DESIGN.md. Seed and NumWorkers are accepted on
// Options and threaded this far for forward compatibility but have no effect
// on the search.
//
// Because SolveCpModel cannot itself be interrupted, giving up on the wait
// here does not stop the underlying solve; it keeps running until it
// finishes or the process exits. timedOut reports whether that happened, so
// the caller can surface StatusUnknown instead of blocking indefinitely.
func solveModel(ctx context.Context, proto *cmpb.CpModelProto, opts Options) (response *cmpb.CpSolverResponse, timedOut bool, err error) {
	type outcome struct {
		response *cmpb.CpSolverResponse
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		r, e := cpmodel.SolveCpModel(proto)
		done <- outcome{r, e}
	}()

	waitCtx := ctx
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}

	select {
	case o := <-done:
		return o.response, false, o.err
	case <-waitCtx.Done():
		return nil, true, nil
	}
}
