// Package calendar generates the fixed slate of duty slots for a quarter.
package calendar

import "github.com/vetroster/oncall/pkg/model"

// saturdayKinds and sundayKinds are emitted for every Saturday/Sunday in the
// quarter, in export order.
var saturdayKinds = []model.ShiftKind{
	model.KindSaturdayReception,
	model.KindSaturdayLate,
	model.KindSaturdayShort,
}

var sundayKinds = []model.ShiftKind{
	model.KindSundayEarly,
	model.KindSundayLate,
	model.KindSundayHalf,
}

// Generate returns every slot for the 90/91-day quarter beginning at
// quarterStart (inclusive) and ending at quarterEnd (inclusive). Every
// Saturday emits three daytime slots, every Sunday emits three daytime
// slots, and every date emits exactly one night slot keyed by that date's
// weekday.
func Generate(quarterStart, quarterEnd model.Date) []model.ShiftSlot {
	var slots []model.ShiftSlot
	for d := quarterStart; !d.After(quarterEnd); d = d.AddDays(1) {
		switch {
		case d.IsSaturday():
			for _, k := range saturdayKinds {
				slots = append(slots, model.ShiftSlot{Kind: k, Date: d})
			}
		case d.IsSunday():
			for _, k := range sundayKinds {
				slots = append(slots, model.ShiftSlot{Kind: k, Date: d})
			}
		}
		slots = append(slots, model.ShiftSlot{Kind: model.NightKindForWeekday(d.Weekday()), Date: d})
	}
	return slots
}

// Dates returns every calendar date in [quarterStart, quarterEnd].
func Dates(quarterStart, quarterEnd model.Date) []model.Date {
	var out []model.Date
	for d := quarterStart; !d.After(quarterEnd); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// QuarterEnd returns the last day of a 90/91-day quarter beginning at start,
// i.e. the day before start shifted forward three months.
func QuarterEnd(start model.Date) model.Date {
	next := model.NewDate(start.Year, start.Month+3, 1)
	return next.AddDays(-1)
}
