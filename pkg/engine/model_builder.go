package engine

import (
	"github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/vetroster/oncall/pkg/calendar"
	"github.com/vetroster/oncall/pkg/eligibility"
	"github.com/vetroster/oncall/pkg/model"
)

// scale keeps the fairness objective's half-unit weights (paired nights
// count 0.5) exact under integer arithmetic, matching the reference
// prototype's convention.
const scale = 400

// typeBalanceWeight is the secondary objective's coefficient. The primary
// fairness range enters the same objective sum with coefficient 1, in the
// same scaled units, so the secondary term is not strictly subordinate to it.
const typeBalanceWeight = 1

type varKey struct {
	staff model.StaffID
	date  model.Date
	kind  model.ShiftKind
}

// builder accumulates the CP-SAT formulation for one quarter.
type builder struct {
	cp *cpmodel.Builder

	roster       map[model.StaffID]model.Staff
	staffIDs     []model.StaffID
	absences     eligibility.Absence
	dates        []model.Date
	quarterStart model.Date
	quarterEnd   model.Date
	prev         *PreviousQuarterContext
	opts         Options

	x      map[varKey]cpmodel.BoolVar
	paired map[model.StaffID]map[model.Date]cpmodel.BoolVar

	objective *cpmodel.LinearExpr
}

func newBuilder(staff []model.Staff, quarterStart, quarterEnd model.Date, absences eligibility.Absence, opts Options) *builder {
	roster := make(map[model.StaffID]model.Staff, len(staff))
	ids := make([]model.StaffID, 0, len(staff))
	for _, s := range staff {
		roster[s.ID] = s
		ids = append(ids, s.ID)
	}
	return &builder{
		cp:           cpmodel.NewCpModelBuilder(),
		roster:       roster,
		staffIDs:     ids,
		absences:     absences,
		dates:        calendar.Dates(quarterStart, quarterEnd),
		quarterStart: quarterStart,
		quarterEnd:   quarterEnd,
		prev:         opts.PreviousQuarter,
		opts:         opts,
		x:            make(map[varKey]cpmodel.BoolVar),
		paired:       make(map[model.StaffID]map[model.Date]cpmodel.BoolVar),
		objective:    cpmodel.NewLinearExpr(),
	}
}

func (b *builder) slotKinds(d model.Date) []model.ShiftKind {
	kinds := []model.ShiftKind{model.NightKindForWeekday(d.Weekday())}
	if d.IsSaturday() {
		kinds = append(kinds, model.KindSaturdayReception, model.KindSaturdayLate, model.KindSaturdayShort)
	}
	if d.IsSunday() {
		kinds = append(kinds, model.KindSundayEarly, model.KindSundayLate, model.KindSundayHalf)
	}
	return kinds
}

// buildVariables creates one BoolVar per (staff, date, kind) triple that
// passes the eligibility oracle and isn't on an absence date. Impossible
// combinations get no variable at all, keeping the model small.
func (b *builder) buildVariables() {
	for _, d := range b.dates {
		kinds := b.slotKinds(d)
		for _, staffID := range b.staffIDs {
			staff := b.roster[staffID]
			for _, k := range kinds {
				if !eligibility.MayWork(staff, k, d, b.absences) {
					continue
				}
				b.x[varKey{staffID, d, k}] = b.cp.NewBoolVar()
			}
		}
	}

	for _, staffID := range b.staffIDs {
		staff := b.roster[staffID]
		if !staff.NDPossible {
			continue
		}
		b.paired[staffID] = make(map[model.Date]cpmodel.BoolVar)
		for _, d := range b.dates {
			k := model.NightKindForWeekday(d.Weekday())
			if _, ok := b.x[varKey{staffID, d, k}]; !ok {
				continue
			}
			b.paired[staffID][d] = b.cp.NewBoolVar()
		}
	}
}

func (b *builder) xVar(s model.StaffID, d model.Date, k model.ShiftKind) (cpmodel.BoolVar, bool) {
	v, ok := b.x[varKey{s, d, k}]
	return v, ok
}

func sumVars(vars []cpmodel.BoolVar) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for _, v := range vars {
		expr.AddTerm(v, 1)
	}
	return expr
}

// nightVarsOnDate returns every staff's night BoolVar on date d, keyed by
// staff ID for convenience.
func (b *builder) nightVarsOnDate(d model.Date) map[model.StaffID]cpmodel.BoolVar {
	k := model.NightKindForWeekday(d.Weekday())
	out := make(map[model.StaffID]cpmodel.BoolVar)
	for _, staffID := range b.staffIDs {
		if v, ok := b.xVar(staffID, d, k); ok {
			out[staffID] = v
		}
	}
	return out
}

func (b *builder) addOnePerDay() {
	for _, staffID := range b.staffIDs {
		for _, d := range b.dates {
			var vars []cpmodel.BoolVar
			for _, k := range b.slotKinds(d) {
				if v, ok := b.xVar(staffID, d, k); ok {
					vars = append(vars, v)
				}
			}
			if len(vars) > 1 {
				b.cp.AddLessOrEqual(sumVars(vars), cpmodel.NewConstant(1))
			}
		}
	}
}

func (b *builder) addCoverage() {
	for _, d := range b.dates {
		if d.IsSaturday() {
			for _, k := range []model.ShiftKind{model.KindSaturdayReception, model.KindSaturdayLate, model.KindSaturdayShort} {
				b.exactlyOneOnSlot(d, k)
			}
		}
		if d.IsSunday() {
			for _, k := range []model.ShiftKind{model.KindSundayEarly, model.KindSundayLate, model.KindSundayHalf} {
				b.exactlyOneOnSlot(d, k)
			}
		}

		nightVars := b.nightVarsOnDate(d)
		var all, azubi, nonAzubi []cpmodel.BoolVar
		for staffID, v := range nightVars {
			all = append(all, v)
			if b.roster[staffID].Role == model.RoleAzubi {
				azubi = append(azubi, v)
			} else {
				nonAzubi = append(nonAzubi, v)
			}
		}

		if isVetPresentNight(d) {
			if len(nonAzubi) > 0 {
				b.cp.AddEquality(sumVars(nonAzubi), cpmodel.NewConstant(1))
			} else {
				// nobody eligible: an empty clause makes the model infeasible
				b.cp.AddBoolOr()
			}
			if len(azubi) > 0 {
				b.cp.AddLessOrEqual(sumVars(azubi), cpmodel.NewConstant(1))
			}
		} else {
			if len(all) > 0 {
				b.cp.AddGreaterOrEqual(sumVars(all), cpmodel.NewConstant(1))
				b.cp.AddLessOrEqual(sumVars(all), cpmodel.NewConstant(2))
			} else {
				b.cp.AddBoolOr()
			}
		}
	}
}

func isVetPresentNight(d model.Date) bool {
	k := model.NightKindForWeekday(d.Weekday())
	return k == model.KindNightSunMon || k == model.KindNightMonTue
}

func (b *builder) exactlyOneOnSlot(d model.Date, k model.ShiftKind) {
	var vars []cpmodel.BoolVar
	for _, staffID := range b.staffIDs {
		if v, ok := b.xVar(staffID, d, k); ok {
			vars = append(vars, v)
		}
	}
	if len(vars) == 0 {
		// nobody eligible: an empty clause makes the model infeasible
		b.cp.AddBoolOr()
		return
	}
	b.cp.AddEquality(sumVars(vars), cpmodel.NewConstant(1))
}

func (b *builder) addAzubiPairing() {
	for _, d := range b.dates {
		nightVars := b.nightVarsOnDate(d)
		var azubiVars []cpmodel.BoolVar
		var nonAzubiVars []cpmodel.BoolVar
		for staffID, v := range nightVars {
			if b.roster[staffID].Role == model.RoleAzubi {
				azubiVars = append(azubiVars, v)
			} else {
				nonAzubiVars = append(nonAzubiVars, v)
			}
		}
		if len(azubiVars) > 1 {
			b.cp.AddLessOrEqual(sumVars(azubiVars), cpmodel.NewConstant(1))
		}
		for _, av := range azubiVars {
			// an azubi's presence implies at least one non-azubi that night
			if len(nonAzubiVars) == 0 {
				b.cp.AddEquality(av, cpmodel.NewConstant(0))
				continue
			}
			b.cp.AddGreaterOrEqual(sumVars(nonAzubiVars), cpmodel.NewConstant(1)).OnlyEnforceIf(av)
		}
	}
}

func (b *builder) addLoneWorkerPolicy() {
	for _, d := range b.dates {
		if isVetPresentNight(d) {
			continue
		}
		nightVars := b.nightVarsOnDate(d)
		for staffID, v := range nightVars {
			staff := b.roster[staffID]
			others := make([]cpmodel.BoolVar, 0, len(nightVars)-1)
			for otherID, ov := range nightVars {
				if otherID != staffID {
					others = append(others, ov)
				}
			}
			if staff.NDAlone {
				if len(others) > 0 {
					b.cp.AddEquality(sumVars(others), cpmodel.NewConstant(0)).OnlyEnforceIf(v)
				}
			} else if len(others) > 0 {
				b.cp.AddEquality(sumVars(others), cpmodel.NewConstant(1)).OnlyEnforceIf(v)
			} else {
				b.cp.AddEquality(v, cpmodel.NewConstant(0))
			}
		}
	}
}

func (b *builder) addRestAfterNight() {
	for _, d := range b.dates {
		nightVars := b.nightVarsOnDate(d)
		next := d.AddDays(1)
		for staffID, nv := range nightVars {
			for _, k := range b.slotKinds(next) {
				if ov, ok := b.xVar(staffID, next, k); ok {
					b.cp.AddImplication(nv, ov.Not())
				}
			}
		}
	}
	if b.prev != nil {
		for staffID, trailing := range b.prev.TrailingLastNight {
			if !trailing {
				continue
			}
			for _, k := range b.slotKinds(b.quarterStart) {
				if v, ok := b.xVar(staffID, b.quarterStart, k); ok {
					b.cp.AddEquality(v, cpmodel.NewConstant(0))
				}
			}
		}
	}
}

func (b *builder) addWeekendIsolation() {
	for _, staffID := range b.staffIDs {
		for _, d := range b.dates {
			if !d.IsSaturday() && !d.IsSunday() {
				continue
			}
			var dayVars []cpmodel.BoolVar
			for _, k := range daytimeKinds(d) {
				if v, ok := b.xVar(staffID, d, k); ok {
					dayVars = append(dayVars, v)
				}
			}
			if len(dayVars) == 0 {
				continue
			}
			for _, adj := range []model.Date{d.AddDays(-1), d.AddDays(1)} {
				var adjVars []cpmodel.BoolVar
				for _, k := range b.slotKinds(adj) {
					if v, ok := b.xVar(staffID, adj, k); ok {
						adjVars = append(adjVars, v)
					}
				}
				if len(adjVars) == 0 {
					continue
				}
				for _, dv := range dayVars {
					for _, av := range adjVars {
						b.cp.AddImplication(dv, av.Not())
					}
				}
			}
		}
	}
}

func daytimeKinds(d model.Date) []model.ShiftKind {
	switch {
	case d.IsSaturday():
		return []model.ShiftKind{model.KindSaturdayReception, model.KindSaturdayLate, model.KindSaturdayShort}
	case d.IsSunday():
		return []model.ShiftKind{model.KindSundayEarly, model.KindSundayLate, model.KindSundayHalf}
	default:
		return nil
	}
}

// blockStartWindowDays is the rolling window within which a staff member
// may start at most one duty block.
const blockStartWindowDays = 14

func (b *builder) addBlockSpacing() {
	for _, staffID := range b.staffIDs {
		anyVarByDate := make(map[model.Date][]cpmodel.BoolVar)
		for _, d := range b.dates {
			for _, k := range b.slotKinds(d) {
				if v, ok := b.xVar(staffID, d, k); ok {
					anyVarByDate[d] = append(anyVarByDate[d], v)
				}
			}
		}

		occupied := make(map[model.Date]cpmodel.BoolVar)
		for _, d := range b.dates {
			vars, ok := anyVarByDate[d]
			if !ok {
				continue
			}
			occ := b.cp.NewBoolVar()
			b.cp.AddGreaterOrEqual(sumVars(vars), cpmodel.NewConstant(1)).OnlyEnforceIf(occ)
			b.cp.AddEquality(sumVars(vars), cpmodel.NewConstant(0)).OnlyEnforceIf(occ.Not())
			occupied[d] = occ
		}

		gap := b.priorGapDays(staffID)

		blockStart := make(map[model.Date]cpmodel.BoolVar)
		for _, d := range b.dates {
			occ, ok := occupied[d]
			if !ok {
				continue
			}
			prev, hasPrev := occupied[d.AddDays(-1)]
			bs := b.cp.NewBoolVar()
			switch {
			case hasPrev:
				b.cp.AddBoolOr(occ.Not(), prev, bs.Not())
				b.cp.AddImplication(bs, occ)
				b.cp.AddImplication(bs, prev.Not())
			case gap >= 0 && gap < blockStartWindowDays:
				// first day of the quarter, within spacing range of the
				// previous quarter's trailing block: occupancy here
				// continues that block rather than starting a new one, so
				// it is never counted as a fresh start. occ itself stays
				// free — the block is allowed to carry forward.
				b.cp.AddEquality(bs, cpmodel.NewConstant(0))
			default:
				// first day of the quarter with no adjoining trailing
				// work: a block start whenever occupied.
				b.cp.AddEquality(bs, occ)
			}
			blockStart[d] = bs
		}

		for i, d := range b.dates {
			bs, ok := blockStart[d]
			if !ok {
				continue
			}
			var window []cpmodel.BoolVar
			for j := i; j < len(b.dates) && j < i+blockStartWindowDays; j++ {
				if v, ok := blockStart[b.dates[j]]; ok {
					window = append(window, v)
				}
			}
			if len(window) > 1 {
				b.cp.AddLessOrEqual(sumVars(window), cpmodel.NewConstant(1))
			}
		}
	}
}

// priorGapDays returns the number of days between a staff member's last
// trailing work date and the new quarter's start, or -1 if unknown.
func (b *builder) priorGapDays(staffID model.StaffID) int {
	if b.prev == nil {
		return -1
	}
	dates := b.prev.TrailingWorkDates[staffID]
	if len(dates) == 0 {
		return -1
	}
	last := dates[0]
	for _, d := range dates[1:] {
		if d.After(last) {
			last = d
		}
	}
	return b.quarterStart.Sub(last)
}

func (b *builder) addMinConsecutiveNights() {
	for _, staffID := range b.staffIDs {
		staff := b.roster[staffID]
		if staff.Role == model.RoleAzubi || staff.NDMinConsecutive <= 1 {
			continue
		}
		nightVar := make(map[model.Date]cpmodel.BoolVar)
		for _, d := range b.dates {
			if v, ok := b.xVar(staffID, d, model.NightKindForWeekday(d.Weekday())); ok {
				nightVar[d] = v
			}
		}

		trailingNightAtBoundary := false
		if b.prev != nil {
			for _, d := range b.prev.TrailingNightDates[staffID] {
				if d == b.quarterStart.AddDays(-1) {
					trailingNightAtBoundary = true
				}
			}
		}

		for i, d := range b.dates {
			v, ok := nightVar[d]
			if !ok {
				continue
			}
			var prevWorked cpmodel.BoolVar
			hasPrev := false
			if i > 0 {
				if pv, ok2 := nightVar[b.dates[i-1]]; ok2 {
					prevWorked = pv
					hasPrev = true
				}
			} else if trailingNightAtBoundary {
				continue // continuation of a prior-quarter block, not a fresh start
			}

			start := b.cp.NewBoolVar()
			if hasPrev {
				b.cp.AddImplication(start, v)
				b.cp.AddImplication(start, prevWorked.Not())
				b.cp.AddBoolOr(v.Not(), prevWorked, start)
			} else {
				b.cp.AddEquality(start, v)
			}

			need := staff.NDMinConsecutive - 1
			var follow []cpmodel.BoolVar
			for j := i + 1; j < len(b.dates) && j <= i+need; j++ {
				if fv, ok2 := nightVar[b.dates[j]]; ok2 {
					follow = append(follow, fv)
				}
			}
			if len(follow) < need {
				// not enough remaining calendar days to satisfy the
				// minimum block length: forbid starting here at all.
				b.cp.AddEquality(start, cpmodel.NewConstant(0))
				continue
			}
			b.cp.AddGreaterOrEqual(sumVars(follow), cpmodel.NewConstant(need)).OnlyEnforceIf(start)
		}
	}
}

// maxConsecutivePenaltyCoefficient scales one excess night, matching the
// reference prototype's flat penalty of 100 per violation.
const maxConsecutivePenaltyCoefficient = 100

func (b *builder) addMaxConsecutiveSoft() {
	for _, staffID := range b.staffIDs {
		staff := b.roster[staffID]
		if staff.NDMaxConsecutive == nil {
			continue
		}
		limit := *staff.NDMaxConsecutive
		nightVar := make(map[model.Date]cpmodel.BoolVar)
		for _, d := range b.dates {
			if v, ok := b.xVar(staffID, d, model.NightKindForWeekday(d.Weekday())); ok {
				nightVar[d] = v
			}
		}
		for i := 0; i+limit < len(b.dates); i++ {
			var window []cpmodel.BoolVar
			for j := i; j <= i+limit; j++ {
				if v, ok := nightVar[b.dates[j]]; ok {
					window = append(window, v)
				}
			}
			if len(window) != limit+1 {
				continue
			}
			excess := b.cp.NewIntVarFromDomain(cpmodel.NewDomain(0, 1))
			sum := sumVars(window)
			sum.AddTerm(excess, -1)
			b.cp.AddLessOrEqual(sum, cpmodel.NewConstant(int64(limit)))
			b.objective.AddTerm(excess, maxConsecutivePenaltyCoefficient)
		}
	}
}

func (b *builder) addDepartmentSeparation() {
	watched := []model.Department{model.DepartmentStation, model.DepartmentOp}
	for _, dept := range watched {
		var deptStaff []model.StaffID
		for _, id := range b.staffIDs {
			if b.roster[id].Department == dept {
				deptStaff = append(deptStaff, id)
			}
		}
		if len(deptStaff) < 2 {
			continue
		}
		for i, d := range b.dates {
			var vars []cpmodel.BoolVar
			for _, id := range deptStaff {
				if v, ok := b.xVar(id, d, model.NightKindForWeekday(d.Weekday())); ok {
					vars = append(vars, v)
				}
			}
			if len(vars) > 1 {
				b.cp.AddLessOrEqual(sumVars(vars), cpmodel.NewConstant(1))
			}
			if i+1 < len(b.dates) {
				next := b.dates[i+1]
				var pairVars []cpmodel.BoolVar
				pairVars = append(pairVars, vars...)
				for _, id := range deptStaff {
					if v, ok := b.xVar(id, next, model.NightKindForWeekday(next.Weekday())); ok {
						pairVars = append(pairVars, v)
					}
				}
				if len(pairVars) > 1 {
					b.cp.AddLessOrEqual(sumVars(pairVars), cpmodel.NewConstant(1))
				}
			}
		}
	}
}

// linkPairedVars ties paired[s,d] to "s worked the night on d AND that
// night has two occupants" so the fairness objective can halve the weight.
func (b *builder) linkPairedVars() {
	for _, d := range b.dates {
		nightVars := b.nightVarsOnDate(d)
		occ := sumVars(varSlice(nightVars))
		occ2 := b.cp.NewBoolVar()
		b.cp.AddEquality(occ, cpmodel.NewConstant(2)).OnlyEnforceIf(occ2)
		b.cp.AddLessOrEqual(occ, cpmodel.NewConstant(1)).OnlyEnforceIf(occ2.Not())

		for staffID, v := range nightVars {
			pairedByDate, ok := b.paired[staffID]
			if !ok {
				continue
			}
			p, ok := pairedByDate[d]
			if !ok {
				continue
			}
			b.cp.AddImplication(p, v)
			b.cp.AddImplication(p, occ2)
			b.cp.AddBoolOr(v.Not(), occ2.Not(), p)
		}
	}
}

func varSlice(m map[model.StaffID]cpmodel.BoolVar) []cpmodel.BoolVar {
	out := make([]cpmodel.BoolVar, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
