// Package validator independently re-checks a finished schedule against
// the roster's hard and soft rules, so a bug in the CP formulation cannot
// silently produce an invalid roster. It does not re-check the model's hard
// cap on each role group's fairness range, and it has no view of the
// previous quarter, so rules that cross the quarter boundary are not checked.
package validator

import (
	"fmt"
	"math"
	"sort"

	"github.com/vetroster/oncall/pkg/eligibility"
	"github.com/vetroster/oncall/pkg/model"
)

// Severity distinguishes a rule that must never be broken from one that
// only contributes to the soft objective.
type Severity string

const (
	Hard Severity = "hard"
	Soft Severity = "soft"
)

// Violation describes one broken rule.
type Violation struct {
	Rule     string
	Severity Severity
	Staff    []model.StaffID
	Dates    []model.Date
	Message  string
}

// PenaltyBreakdown itemizes the soft-objective cost by category.
type PenaltyBreakdown struct {
	Fairness       float64
	TypeBalance    float64
	MaxConsecutive float64
}

func (p PenaltyBreakdown) Total() float64 {
	return p.Fairness + p.TypeBalance + p.MaxConsecutive
}

// Result is the outcome of validating one schedule.
type Result struct {
	Violations []Violation
	Penalty    PenaltyBreakdown
}

func (r Result) HasHardViolations() bool {
	for _, v := range r.Violations {
		if v.Severity == Hard {
			return true
		}
	}
	return false
}

// Options controls which optional rules are applied.
type Options struct {
	EnforceParticipation bool
	QuarterStart         model.Date
	QuarterEnd           model.Date
}

// Validate exhaustively checks schedule against roster and absences. It
// never short-circuits: every rule runs and contributes its own findings.
func Validate(schedule *model.Schedule, roster map[model.StaffID]model.Staff, absences eligibility.Absence, opts Options) Result {
	var v []Violation

	v = append(v, checkCoverage(schedule, opts)...)
	v = append(v, checkEligibility(schedule, roster, absences)...)
	v = append(v, checkSameDayDoubleBooking(schedule)...)
	v = append(v, checkAzubiPairing(schedule, roster)...)
	v = append(v, checkLoneWorker(schedule, roster)...)
	v = append(v, checkRestAfterNight(schedule)...)
	v = append(v, checkWeekendIsolation(schedule)...)
	v = append(v, checkBlockSpacing(schedule)...)
	v = append(v, checkMinConsecutiveNights(schedule, roster)...)
	v = append(v, checkDepartmentSeparation(schedule, roster)...)
	if opts.EnforceParticipation {
		v = append(v, checkMinParticipation(schedule, roster, opts)...)
	}

	maxConsecViolations, maxConsecPenalty := checkMaxConsecutiveNights(schedule, roster)
	v = append(v, maxConsecViolations...)

	fairness, typeBalance := computeFairnessPenalty(schedule, roster, absences, opts)

	return Result{
		Violations: v,
		Penalty: PenaltyBreakdown{
			Fairness:       fairness,
			TypeBalance:    typeBalance,
			MaxConsecutive: maxConsecPenalty,
		},
	}
}

func byStaff(schedule *model.Schedule) map[model.StaffID][]model.Assignment {
	out := make(map[model.StaffID][]model.Assignment)
	for _, a := range schedule.Assignments {
		out[a.StaffID] = append(out[a.StaffID], a)
	}
	for id := range out {
		list := out[id]
		sort.Slice(list, func(i, j int) bool { return list[i].Slot.Date.Before(list[j].Slot.Date) })
		out[id] = list
	}
	return out
}

func checkCoverage(schedule *model.Schedule, opts Options) []Violation {
	var v []Violation
	seen := make(map[model.ShiftSlot]int)
	for _, a := range schedule.Assignments {
		seen[a.Slot]++
	}
	for d := opts.QuarterStart; !d.After(opts.QuarterEnd); d = d.AddDays(1) {
		if d.IsSaturday() {
			for _, k := range []model.ShiftKind{model.KindSaturdayReception, model.KindSaturdayLate, model.KindSaturdayShort} {
				slot := model.ShiftSlot{Kind: k, Date: d}
				if seen[slot] != 1 {
					v = append(v, Violation{Rule: "coverage", Severity: Hard, Dates: []model.Date{d},
						Message: fmt.Sprintf("slot %s on %s has %d assignments, want 1", k, d, seen[slot])})
				}
			}
		}
		if d.IsSunday() {
			for _, k := range []model.ShiftKind{model.KindSundayEarly, model.KindSundayLate, model.KindSundayHalf} {
				slot := model.ShiftSlot{Kind: k, Date: d}
				if seen[slot] != 1 {
					v = append(v, Violation{Rule: "coverage", Severity: Hard, Dates: []model.Date{d},
						Message: fmt.Sprintf("slot %s on %s has %d assignments, want 1", k, d, seen[slot])})
				}
			}
		}
		nightKind := model.NightKindForWeekday(d.Weekday())
		total := seen[model.ShiftSlot{Kind: nightKind, Date: d}]
		if total < 1 || total > 2 {
			v = append(v, Violation{Rule: "coverage", Severity: Hard, Dates: []model.Date{d},
				Message: fmt.Sprintf("night %s on %s has %d assignments, want 1 or 2", nightKind, d, total)})
		}
	}
	return v
}

func checkEligibility(schedule *model.Schedule, roster map[model.StaffID]model.Staff, absences eligibility.Absence) []Violation {
	var v []Violation
	for _, a := range schedule.Assignments {
		staff, ok := roster[a.StaffID]
		if !ok {
			v = append(v, Violation{Rule: "eligibility", Severity: Hard, Staff: []model.StaffID{a.StaffID},
				Dates: []model.Date{a.Slot.Date}, Message: "assignment references unknown staff"})
			continue
		}
		if !eligibility.MayWork(staff, a.Slot.Kind, a.Slot.Date, absences) {
			v = append(v, Violation{Rule: "eligibility", Severity: Hard, Staff: []model.StaffID{a.StaffID},
				Dates: []model.Date{a.Slot.Date},
				Message: fmt.Sprintf("%s is not eligible for %s on %s", a.StaffID, a.Slot.Kind, a.Slot.Date)})
		}
	}
	return v
}

func checkSameDayDoubleBooking(schedule *model.Schedule) []Violation {
	var v []Violation
	for staffID, assignments := range byStaff(schedule) {
		byDate := make(map[model.Date][]model.Assignment)
		for _, a := range assignments {
			byDate[a.Slot.Date] = append(byDate[a.Slot.Date], a)
		}
		for d, list := range byDate {
			if len(list) > 1 {
				v = append(v, Violation{Rule: "double_booking", Severity: Hard, Staff: []model.StaffID{staffID},
					Dates: []model.Date{d}, Message: fmt.Sprintf("%s has %d assignments on %s", staffID, len(list), d)})
			}
		}
	}
	return v
}

func checkAzubiPairing(schedule *model.Schedule, roster map[model.StaffID]model.Staff) []Violation {
	var v []Violation
	nightGroups := make(map[model.ShiftSlot][]model.Assignment)
	for _, a := range schedule.Assignments {
		if a.Slot.Kind.IsNight() {
			nightGroups[a.Slot] = append(nightGroups[a.Slot], a)
		}
	}
	for slot, group := range nightGroups {
		azubis := 0
		nonAzubis := 0
		for _, a := range group {
			if roster[a.StaffID].Role == model.RoleAzubi {
				azubis++
			} else {
				nonAzubis++
			}
		}
		if azubis > 0 && nonAzubis == 0 {
			v = append(v, Violation{Rule: "azubi_pairing", Severity: Hard, Dates: []model.Date{slot.Date},
				Message: fmt.Sprintf("azubi on night %s %s has no non-azubi paired", slot.Kind, slot.Date)})
		}
		if azubis > 1 {
			v = append(v, Violation{Rule: "azubi_pairing", Severity: Hard, Dates: []model.Date{slot.Date},
				Message: fmt.Sprintf("two azubis paired on night %s %s", slot.Kind, slot.Date)})
		}
		if !isRegularNight(slot.Kind) && nonAzubis > 1 {
			v = append(v, Violation{Rule: "night_capacity", Severity: Hard, Dates: []model.Date{slot.Date},
				Message: fmt.Sprintf("night %s %s has %d non-azubi staff, want exactly 1", slot.Kind, slot.Date, nonAzubis)})
		}
	}
	return v
}

func isRegularNight(k model.ShiftKind) bool {
	return k.IsNight() && k != model.KindNightSunMon && k != model.KindNightMonTue
}

func checkLoneWorker(schedule *model.Schedule, roster map[model.StaffID]model.Staff) []Violation {
	var v []Violation
	nightGroups := make(map[model.ShiftSlot][]model.Assignment)
	for _, a := range schedule.Assignments {
		if a.Slot.Kind.IsNight() {
			nightGroups[a.Slot] = append(nightGroups[a.Slot], a)
		}
	}
	for slot, group := range nightGroups {
		if !isRegularNight(slot.Kind) {
			continue
		}
		for _, a := range group {
			staff := roster[a.StaffID]
			if staff.NDAlone && len(group) != 1 {
				v = append(v, Violation{Rule: "lone_worker", Severity: Hard, Staff: []model.StaffID{a.StaffID},
					Dates: []model.Date{slot.Date}, Message: fmt.Sprintf("%s requires a solo night but %s %s has %d assignments", a.StaffID, slot.Kind, slot.Date, len(group))})
			}
			if !staff.NDAlone && len(group) != 2 {
				v = append(v, Violation{Rule: "lone_worker", Severity: Hard, Staff: []model.StaffID{a.StaffID},
					Dates: []model.Date{slot.Date}, Message: fmt.Sprintf("%s requires a paired night but %s %s has %d assignments", a.StaffID, slot.Kind, slot.Date, len(group))})
			}
		}
	}
	return v
}

func checkRestAfterNight(schedule *model.Schedule) []Violation {
	var v []Violation
	for staffID, assignments := range byStaff(schedule) {
		byDate := make(map[model.Date]model.Assignment)
		for _, a := range assignments {
			byDate[a.Slot.Date] = a
		}
		for _, a := range assignments {
			if !a.Slot.Kind.IsNight() {
				continue
			}
			d := a.Slot.Date
			if other, ok := byDate[d.AddDays(1)]; ok {
				v = append(v, Violation{Rule: "rest_after_night", Severity: Hard, Staff: []model.StaffID{staffID},
					Dates: []model.Date{d, d.AddDays(1)},
					Message: fmt.Sprintf("%s assigned to %s on %s, the day after starting a night on %s", staffID, other.Slot.Kind, d.AddDays(1), d)})
			}
		}
	}
	return v
}

func checkWeekendIsolation(schedule *model.Schedule) []Violation {
	var v []Violation
	for staffID, assignments := range byStaff(schedule) {
		byDate := make(map[model.Date]model.Assignment)
		for _, a := range assignments {
			byDate[a.Slot.Date] = a
		}
		for _, a := range assignments {
			if a.Slot.Kind.IsNight() {
				continue
			}
			d := a.Slot.Date
			for _, adj := range []model.Date{d.AddDays(-1), d.AddDays(1)} {
				if other, ok := byDate[adj]; ok && other.Slot != a.Slot {
					v = append(v, Violation{Rule: "weekend_isolation", Severity: Hard, Staff: []model.StaffID{staffID},
						Dates: []model.Date{d, adj}, Message: fmt.Sprintf("%s assigned adjacent to weekend slot %s on %s", staffID, a.Slot.Kind, d)})
				}
			}
		}
	}
	return v
}

// blocks returns the maximal runs of calendar-consecutive dates on which
// staffID has any assignment.
func blocks(assignments []model.Assignment) [][]model.Date {
	dates := make([]model.Date, 0, len(assignments))
	seen := make(map[model.Date]bool)
	for _, a := range assignments {
		if !seen[a.Slot.Date] {
			seen[a.Slot.Date] = true
			dates = append(dates, a.Slot.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var out [][]model.Date
	var cur []model.Date
	for _, d := range dates {
		if len(cur) == 0 || d.Sub(cur[len(cur)-1]) == 1 {
			cur = append(cur, d)
		} else {
			out = append(out, cur)
			cur = []model.Date{d}
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func checkBlockSpacing(schedule *model.Schedule) []Violation {
	var v []Violation
	for staffID, assignments := range byStaff(schedule) {
		bs := blocks(assignments)
		for i := 0; i < len(bs); i++ {
			for j := i + 1; j < len(bs); j++ {
				gap := bs[j][0].Sub(bs[i][0])
				if gap < 14 {
					v = append(v, Violation{Rule: "block_spacing", Severity: Hard, Staff: []model.StaffID{staffID},
						Dates: []model.Date{bs[i][0], bs[j][0]},
						Message: fmt.Sprintf("%s starts blocks on %s and %s only %d days apart (want >= 14)", staffID, bs[i][0], bs[j][0], gap)})
				}
			}
		}
	}
	return v
}

func nightBlocks(assignments []model.Assignment) [][]model.Date {
	var nights []model.Assignment
	for _, a := range assignments {
		if a.Slot.Kind.IsNight() {
			nights = append(nights, a)
		}
	}
	return blocks(nights)
}

func checkMinConsecutiveNights(schedule *model.Schedule, roster map[model.StaffID]model.Staff) []Violation {
	var v []Violation
	for staffID, assignments := range byStaff(schedule) {
		staff, ok := roster[staffID]
		if !ok || staff.Role == model.RoleAzubi {
			continue
		}
		min := staff.NDMinConsecutive
		if min <= 0 {
			continue
		}
		for _, block := range nightBlocks(assignments) {
			if len(block) < min {
				v = append(v, Violation{Rule: "min_consecutive_nights", Severity: Hard, Staff: []model.StaffID{staffID},
					Dates: []model.Date{block[0]},
					Message: fmt.Sprintf("%s starts a %d-night block on %s, below their minimum of %d", staffID, len(block), block[0], min)})
			}
		}
	}
	return v
}

func checkMaxConsecutiveNights(schedule *model.Schedule, roster map[model.StaffID]model.Staff) ([]Violation, float64) {
	var v []Violation
	penalty := 0.0
	for staffID, assignments := range byStaff(schedule) {
		staff, ok := roster[staffID]
		if !ok || staff.NDMaxConsecutive == nil {
			continue
		}
		limit := *staff.NDMaxConsecutive
		for _, block := range nightBlocks(assignments) {
			if len(block) > limit {
				excess := len(block) - limit
				penalty += float64(excess) * 100
				v = append(v, Violation{Rule: "max_consecutive_nights", Severity: Soft, Staff: []model.StaffID{staffID},
					Dates: []model.Date{block[0]},
					Message: fmt.Sprintf("%s works a %d-night block starting %s, exceeding their limit of %d", staffID, len(block), block[0], limit)})
			}
		}
	}
	return v, penalty
}

func checkDepartmentSeparation(schedule *model.Schedule, roster map[model.StaffID]model.Staff) []Violation {
	var v []Violation
	type key struct {
		date model.Date
		dept model.Department
	}
	byNight := make(map[model.Date][]model.Assignment)
	for _, a := range schedule.Assignments {
		if a.Slot.Kind.IsNight() {
			byNight[a.Slot.Date] = append(byNight[a.Slot.Date], a)
		}
	}
	watched := map[model.Department]bool{model.DepartmentStation: true, model.DepartmentOp: true}

	countByDeptDate := make(map[key]int)
	for d, group := range byNight {
		for _, a := range group {
			dept := roster[a.StaffID].Department
			if watched[dept] {
				countByDeptDate[key{d, dept}]++
			}
		}
	}
	for k, n := range countByDeptDate {
		if n > 1 {
			v = append(v, Violation{Rule: "department_separation", Severity: Hard, Dates: []model.Date{k.date},
				Message: fmt.Sprintf("department %s has %d staff on night %s", k.dept, n, k.date)})
		}
	}

	for dept := range watched {
		dates := make([]model.Date, 0, len(byNight))
		for d := range byNight {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		for _, d := range dates {
			if countByDeptDate[key{d, dept}] == 0 {
				continue
			}
			next := d.AddDays(1)
			if countByDeptDate[key{next, dept}] > 0 {
				v = append(v, Violation{Rule: "department_separation", Severity: Hard, Dates: []model.Date{d, next},
					Message: fmt.Sprintf("department %s staffs consecutive nights %s and %s", dept, d, next)})
			}
		}
	}
	return v
}

func checkMinParticipation(schedule *model.Schedule, roster map[model.StaffID]model.Staff, opts Options) []Violation {
	var v []Violation
	for id, staff := range roster {
		if staff.Role == model.RoleTFA || staff.Role == model.RoleAzubi {
			if schedule.WeekendCount(id) == 0 {
				v = append(v, Violation{Rule: "min_participation_weekend", Severity: Hard, Staff: []model.StaffID{id},
					Message: fmt.Sprintf("%s has no weekend assignment this quarter", id)})
			}
		}
		if staff.NDPossible {
			availableNightKinds := 7 - len(staff.NDExceptions)
			if availableNightKinds < staff.NDMinConsecutive {
				continue // exempt: not enough available night kinds to ever form a legal block
			}
			if schedule.TotalNotdienst(id) == 0 {
				v = append(v, Violation{Rule: "min_participation_night", Severity: Hard, Staff: []model.StaffID{id},
					Message: fmt.Sprintf("%s has no night assignment this quarter", id)})
			}
		}
	}
	return v
}

// computeFairnessPenalty mirrors the CP model's fairness objective in plain
// floating point, for standalone reporting outside a solve.
func computeFairnessPenalty(schedule *model.Schedule, roster map[model.StaffID]model.Staff, absences eligibility.Absence, opts Options) (fairness, typeBalance float64) {
	quarterDays := opts.QuarterEnd.Sub(opts.QuarterStart) + 1
	groups := map[model.Role][]model.StaffID{}
	for id, s := range roster {
		groups[s.Role] = append(groups[s.Role], id)
	}

	for _, ids := range groups {
		if len(ids) == 0 {
			continue
		}
		loads := make([]float64, 0, len(ids))
		nightOnly := make([]float64, 0, len(ids))
		for _, id := range ids {
			staff := roster[id]
			availableDays := quarterDays - len(absences[id])
			if availableDays <= 0 {
				availableDays = 1
			}
			adjusted := float64(schedule.WeekendCount(id)) + schedule.EffectiveNights(id, roster)
			hours := staff.Hours
			if hours <= 0 {
				hours = 40
			}
			load := adjusted * (40.0 / float64(hours)) * (float64(quarterDays) / float64(availableDays))
			loads = append(loads, load)
			nightOnly = append(nightOnly, schedule.EffectiveNights(id, roster))
		}
		fairness += squaredDeviationPlusStdDev(loads)
		typeBalance += rangeOf(nightOnly)
	}
	return fairness, typeBalance
}

func squaredDeviationPlusStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	variance := sumSq / float64(len(values))
	return sumSq + 10*math.Sqrt(variance)
}

func rangeOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}
