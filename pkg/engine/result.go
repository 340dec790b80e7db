// Package engine builds the CP-SAT formulation of the roster problem and
// drives the search for a solution.
package engine

import (
	"github.com/vetroster/oncall/pkg/model"
	"github.com/vetroster/oncall/pkg/validator"
)

// UnsatisfiableKind classifies why a solve came back infeasible, for callers
// that want to surface a specific diagnosis rather than a generic message.
type UnsatisfiableKind string

const (
	InsufficientNightCapacity   UnsatisfiableKind = "insufficient_night_capacity"
	InsufficientWeekendCapacity UnsatisfiableKind = "insufficient_weekend_capacity"
	ParticipationConflict       UnsatisfiableKind = "participation_conflict"
	BlockSpacingConflict        UnsatisfiableKind = "block_spacing_conflict"
	Generic                     UnsatisfiableKind = "generic"
)

// UnsatisfiableConstraint is one diagnosed cause of infeasibility.
type UnsatisfiableConstraint struct {
	Kind    UnsatisfiableKind
	Dates   []model.Date
	Staff   []model.StaffID
	Message string
}

// Status reports the CP-SAT solver's outcome classification.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible" // a solution was found but not proven optimal
	StatusInfeasible Status = "infeasible"
	StatusUnknown    Status = "unknown" // no feasible incumbent within the time budget
)

// Result is what a Solve call returns.
type Result struct {
	Status                   Status
	Feasible                 bool
	Schedule                 *model.Schedule
	Violations               []validator.Violation
	SoftPenalty              validator.PenaltyBreakdown
	Cancelled                bool
	UnsatisfiableConstraints []UnsatisfiableConstraint
}
