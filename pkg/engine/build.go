package engine

import cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"

// build runs every constraint and objective pass in dependency order and
// returns the finished proto model, ready for the solver.
func (b *builder) build() (*cmpb.CpModelProto, error) {
	b.buildVariables()
	b.addOnePerDay()
	b.addCoverage()
	b.addAzubiPairing()
	b.addLoneWorkerPolicy()
	b.addRestAfterNight()
	b.addWeekendIsolation()
	b.addBlockSpacing()
	b.addMinConsecutiveNights()
	b.addMaxConsecutiveSoft()
	b.addDepartmentSeparation()
	b.addFairnessObjective()
	b.addTypeBalanceObjective()

	b.cp.Minimize(b.objective)
	return b.cp.Model()
}
