package engine

import (
	"github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/vetroster/oncall/pkg/model"
)

// loadFactor returns the integer-scaled per-slot weight that normalizes a
// staff member's raw weekend/night counts onto a common 40h/full-quarter
// basis, so the fairness objective can compare across hours and absences
// using only integer arithmetic.
func (b *builder) loadFactor(staffID model.StaffID) int64 {
	staff := b.roster[staffID]
	hours := staff.Hours
	if hours <= 0 {
		hours = 40
	}
	quarterDays := b.quarterEnd.Sub(b.quarterStart) + 1
	available := quarterDays - len(b.absences[staffID])
	if available <= 0 {
		available = 1
	}
	factor := (40.0 / float64(hours)) * (float64(quarterDays) / float64(available))
	return int64(factor*scale + 0.5)
}

// loadBound is a generous upper bound on any one staff member's scaled
// load, used only to size IntVar domains.
func (b *builder) loadBound() int64 {
	return int64(len(b.dates)) * scale * 4
}

// buildLoadExpr returns the linear expression for staffID's scaled fairness
// load: every weekend or night slot contributes its group factor, with
// paired nights counted at half weight via the paired[] BoolVar.
func (b *builder) buildLoadExpr(staffID model.StaffID) *cpmodel.LinearExpr {
	factor := b.loadFactor(staffID)
	expr := cpmodel.NewLinearExpr()

	for _, d := range b.dates {
		for _, k := range daytimeKinds(d) {
			if v, ok := b.xVar(staffID, d, k); ok {
				expr.AddTerm(v, factor)
			}
		}
	}

	staff := b.roster[staffID]
	for _, d := range b.dates {
		k := model.NightKindForWeekday(d.Weekday())
		v, ok := b.xVar(staffID, d, k)
		if !ok {
			continue
		}
		expr.AddTerm(v, factor)
		if staff.Role != model.RoleAzubi {
			if p, ok := b.paired[staffID][d]; ok {
				expr.AddTerm(p, -factor/2)
			}
		}
	}

	if b.opts.PreviousQuarter != nil {
		if delta, ok := b.opts.PreviousQuarter.CarryForwardDelta[staffID]; ok && delta != 0 {
			// Fold the carry-forward correction in as a fixed-value IntVar
			// so it becomes an ordinary term of the expression.
			deltaScaled := int64(delta*scale + 0.5)
			deltaVar := b.cp.NewIntVarFromDomain(cpmodel.NewDomain(deltaScaled, deltaScaled))
			b.cp.AddEquality(deltaVar, cpmodel.NewConstant(deltaScaled))
			expr.AddTerm(deltaVar, 1)
		}
	}

	return expr
}

// buildNightOnlyExpr returns the linear expression for staffID's raw
// fairness-weighted night count scaled by `scale`, with no hours or
// availability normalization applied. This feeds the type-balance
// objective, mirroring the validator's use of Schedule.EffectiveNights for
// the same purpose.
func (b *builder) buildNightOnlyExpr(staffID model.StaffID) *cpmodel.LinearExpr {
	staff := b.roster[staffID]
	expr := cpmodel.NewLinearExpr()

	for _, d := range b.dates {
		k := model.NightKindForWeekday(d.Weekday())
		v, ok := b.xVar(staffID, d, k)
		if !ok {
			continue
		}
		expr.AddTerm(v, scale)
		if staff.Role != model.RoleAzubi {
			if p, ok := b.paired[staffID][d]; ok {
				expr.AddTerm(p, -scale/2)
			}
		}
	}
	return expr
}

func (b *builder) addFairnessObjective() {
	b.linkPairedVars()

	byRole := make(map[model.Role][]model.StaffID)
	for _, id := range b.staffIDs {
		staff := b.roster[id]
		if b.opts.ExemptRestrictedFromFairness && 7-len(staff.NDExceptions) < staff.NDMinConsecutive {
			continue
		}
		byRole[staff.Role] = append(byRole[staff.Role], id)
	}

	maxDeviation := b.opts.MaxFTEDeviation
	if maxDeviation <= 0 {
		maxDeviation = 1.5
	}
	hardCap := int64(maxDeviation*scale + 0.5)
	bound := b.loadBound()
	domain := cpmodel.NewDomain(0, bound)

	for _, ids := range byRole {
		if len(ids) < 2 {
			continue
		}
		maxLoad := b.cp.NewIntVarFromDomain(domain)
		minLoad := b.cp.NewIntVarFromDomain(domain)
		for _, id := range ids {
			loadExpr := b.buildLoadExpr(id)
			b.cp.AddLessOrEqual(loadExpr, maxLoad)
			b.cp.AddGreaterOrEqual(loadExpr, minLoad)
		}
		rangeExpr := cpmodel.NewLinearExpr()
		rangeExpr.AddTerm(maxLoad, 1)
		rangeExpr.AddTerm(minLoad, -1)
		b.cp.AddLessOrEqual(rangeExpr, cpmodel.NewConstant(hardCap))
		b.objective.AddTerm(maxLoad, 1)
		b.objective.AddTerm(minLoad, -1)
	}
}

// addTypeBalanceObjective is the secondary objective: it minimizes, within
// each role group, the spread between the highest and lowest night-only
// count. It is added to the same objective sum as the primary fairness range
// with an equal coefficient (typeBalanceWeight), so it is not a strict
// tie-breaker: the solver can trade one range against the other. This mirrors the group-wide range validator.go
// re-derives from a solved schedule for reporting, so the two agree on what
// "balanced" means.
func (b *builder) addTypeBalanceObjective() {
	byRole := make(map[model.Role][]model.StaffID)
	for _, id := range b.staffIDs {
		byRole[b.roster[id].Role] = append(byRole[b.roster[id].Role], id)
	}

	bound := b.loadBound()
	domain := cpmodel.NewDomain(0, bound)

	for _, ids := range byRole {
		if len(ids) < 2 {
			continue
		}
		maxNight := b.cp.NewIntVarFromDomain(domain)
		minNight := b.cp.NewIntVarFromDomain(domain)
		for _, id := range ids {
			nightExpr := b.buildNightOnlyExpr(id)
			b.cp.AddLessOrEqual(nightExpr, maxNight)
			b.cp.AddGreaterOrEqual(nightExpr, minNight)
		}
		b.objective.AddTerm(maxNight, typeBalanceWeight)
		b.objective.AddTerm(minNight, -typeBalanceWeight)
	}
}
