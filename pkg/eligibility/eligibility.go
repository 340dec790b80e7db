// Package eligibility implements the pure predicate deciding whether a staff
// member may be assigned to a given shift slot.
package eligibility

import "github.com/vetroster/oncall/pkg/model"

// Absence is the set of dates a staff member is unavailable on (vacation
// days plus their birthday, if it falls in the quarter).
type Absence map[model.StaffID]map[model.Date]struct{}

// Has reports whether staff is absent on date.
func (a Absence) Has(staff model.StaffID, date model.Date) bool {
	days, ok := a[staff]
	if !ok {
		return false
	}
	_, absent := days[date]
	return absent
}

// MayWork reports whether staff may be assigned to kind on date, considering
// role eligibility, age restrictions, absences and night weekday exceptions.
func MayWork(staff model.Staff, kind model.ShiftKind, date model.Date, absences Absence) bool {
	if absences.Has(staff.ID, date) {
		return false
	}

	if kind.IsNight() {
		if !staff.NDPossible {
			return false
		}
		if staff.ForbidsWeekday(date.Weekday()) {
			return false
		}
		return true
	}

	// Daytime weekend slots.
	if staff.Role == model.RoleIntern {
		return false
	}
	if !staff.Adult && date.IsSunday() {
		return false
	}

	switch kind {
	case model.KindSaturdayLate, model.KindSundayEarly, model.KindSundayLate:
		return staff.Role == model.RoleTFA
	case model.KindSaturdayShort:
		return staff.Role == model.RoleAzubi
	case model.KindSundayHalf:
		return staff.Role == model.RoleAzubi && staff.Adult
	case model.KindSaturdayReception:
		return staff.Role == model.RoleTFA || (staff.Role == model.RoleAzubi && staff.Reception)
	default:
		return false
	}
}
