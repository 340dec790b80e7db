// Package fairness computes descriptive load-distribution statistics for a
// finished schedule, independent of whatever objective the solver itself
// optimized. It is a reporting tool, not a constraint.
package fairness

import (
	"math"
	"sort"

	"github.com/vetroster/oncall/pkg/eligibility"
	"github.com/vetroster/oncall/pkg/model"
)

// StaffLoad is one staff member's fairness-relevant figures for a quarter.
type StaffLoad struct {
	StaffID       model.StaffID
	WeekendCount  int
	EffectiveNight float64
	NormalizedLoad float64 // adjusted count scaled to a 40h/full-availability staff member
	DeviationPct  float64 // percent deviation from the staff's role-group mean
}

// GroupReport summarizes one role group's load distribution.
type GroupReport struct {
	Role      model.Role
	Loads     []StaffLoad
	Mean      float64
	StdDev    float64
	Gini      float64
	Range     float64
	NightGini float64
}

// Report is the full fairness summary across every role group present in
// the roster.
type Report struct {
	Groups []GroupReport
}

// Compute builds a Report for schedule given roster and absences, over the
// quarter spanning [quarterStart, quarterEnd].
func Compute(schedule *model.Schedule, roster map[model.StaffID]model.Staff, absences eligibility.Absence, quarterStart, quarterEnd model.Date) Report {
	quarterDays := quarterEnd.Sub(quarterStart) + 1

	byRole := make(map[model.Role][]model.StaffID)
	for id, s := range roster {
		byRole[s.Role] = append(byRole[s.Role], id)
	}

	var report Report
	for role, ids := range byRole {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		loads := make([]StaffLoad, 0, len(ids))
		normValues := make([]float64, 0, len(ids))
		nightValues := make([]float64, 0, len(ids))

		for _, id := range ids {
			staff := roster[id]
			weekend := schedule.WeekendCount(id)
			nights := schedule.EffectiveNights(id, roster)

			availableDays := quarterDays - len(absences[id])
			if availableDays <= 0 {
				availableDays = 1
			}
			hours := staff.Hours
			if hours <= 0 {
				hours = 40
			}
			adjusted := float64(weekend) + nights
			normalized := adjusted * (40.0 / float64(hours)) * (float64(quarterDays) / float64(availableDays))

			loads = append(loads, StaffLoad{
				StaffID:        id,
				WeekendCount:   weekend,
				EffectiveNight: nights,
				NormalizedLoad: normalized,
			})
			normValues = append(normValues, normalized)
			nightValues = append(nightValues, nights)
		}

		mean := meanOf(normValues)
		for i := range loads {
			if mean != 0 {
				loads[i].DeviationPct = (loads[i].NormalizedLoad - mean) / mean * 100
			}
		}

		report.Groups = append(report.Groups, GroupReport{
			Role:      role,
			Loads:     loads,
			Mean:      mean,
			StdDev:    math.Sqrt(varianceOf(normValues, mean)),
			Gini:      giniOf(normValues),
			Range:     rangeOf(normValues),
			NightGini: giniOf(nightValues),
		})
	}

	sort.Slice(report.Groups, func(i, j int) bool { return report.Groups[i].Role < report.Groups[j].Role })
	return report
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func varianceOf(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(values))
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

// giniOf returns the Gini coefficient of values, 0 (perfectly even) to 1.
func giniOf(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}
	gini /= float64(n) * sum
	return math.Max(0, math.Min(1, gini))
}
