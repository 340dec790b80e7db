package engine

import (
	"time"

	"github.com/vetroster/oncall/pkg/model"
)

// PreviousQuarterContext carries state from the previous quarter's solved
// schedule so a new solve can respect couplings that straddle the quarter
// boundary. All fields are optional input computed by the caller; the
// engine never derives them itself.
type PreviousQuarterContext struct {
	// TrailingWorkDates lists, per staff, the dates within 21 days before
	// the new quarter's start on which they worked in the prior quarter.
	TrailingWorkDates map[model.StaffID][]model.Date

	// TrailingNightDates is the same idea restricted to night assignments.
	TrailingNightDates map[model.StaffID][]model.Date

	// TrailingLastNight lists staff who worked the night shift that began
	// on the previous quarter's final calendar day, and are therefore owed
	// rest on this quarter's first day.
	TrailingLastNight map[model.StaffID]bool

	// CarryForwardDelta is a per-staff Norm./40h correction applied to
	// that staff's fairness load before the group range is computed.
	CarryForwardDelta map[model.StaffID]float64
}

// Options configures one Solve call.
type Options struct {
	TimeLimit time.Duration
	Seed      *int64
	NumWorkers int

	EnforceMinParticipation bool
	MaxFTEDeviation         float64 // Norm./40h units; 0 uses the default of 1.5

	// ExemptRestrictedFromFairness excludes staff whose night-weekday
	// exceptions leave fewer available night kinds than their
	// NDMinConsecutive from the fairness objective's
	// range computation, so a structurally under-utilized staff member
	// cannot force everyone else's range wider. Default false.
	ExemptRestrictedFromFairness bool

	PreviousQuarter *PreviousQuarterContext
}

// DefaultOptions returns the engine's out-of-the-box tuning.
func DefaultOptions() Options {
	return Options{
		TimeLimit:               120 * time.Second,
		NumWorkers:              8,
		EnforceMinParticipation: false,
		MaxFTEDeviation:         1.5,
	}
}
