package model

import "sort"

// ShiftKind identifies one of the fixed duty slots the clinic runs. Weekend
// daytime slots only exist on their named weekday; night slots exist once
// per calendar day, keyed by the weekday the night starts on.
type ShiftKind string

const (
	// Saturday daytime slots.
	KindSaturdayReception ShiftKind = "Sa_10-21" // carries reception duty
	KindSaturdayLate      ShiftKind = "Sa_10-22"
	KindSaturdayShort     ShiftKind = "Sa_10-19"

	// Sunday daytime slots.
	KindSundayEarly ShiftKind = "So_8-20"
	KindSundayLate  ShiftKind = "So_10-22"
	KindSundayHalf  ShiftKind = "So_8-20:30"

	// Night slots, one per weekday the night starts on.
	KindNightSunMon ShiftKind = "N_So-Mo"
	KindNightMonTue ShiftKind = "N_Mo-Di"
	KindNightTueWed ShiftKind = "N_Di-Mi"
	KindNightWedThu ShiftKind = "N_Mi-Do"
	KindNightThuFri ShiftKind = "N_Do-Fr"
	KindNightFriSat ShiftKind = "N_Fr-Sa"
	KindNightSatSun ShiftKind = "N_Sa-So"
)

// nightKindByWeekday maps the ISO weekday ordinal a night starts on (1=Mon
// ... 7=Sun) to the night kind that covers it.
var nightKindByWeekday = map[int]ShiftKind{
	7: KindNightSunMon,
	1: KindNightMonTue,
	2: KindNightTueWed,
	3: KindNightWedThu,
	4: KindNightThuFri,
	5: KindNightFriSat,
	6: KindNightSatSun,
}

// NightKindForWeekday returns the night kind that starts on the given ISO
// weekday ordinal.
func NightKindForWeekday(weekday int) ShiftKind {
	return nightKindByWeekday[weekday]
}

// IsNight reports whether the kind is one of the seven night slots.
func (k ShiftKind) IsNight() bool {
	switch k {
	case KindNightSunMon, KindNightMonTue, KindNightTueWed, KindNightWedThu,
		KindNightThuFri, KindNightFriSat, KindNightSatSun:
		return true
	}
	return false
}

// IsWeekendDay reports whether the kind is one of the six Saturday/Sunday
// daytime slots.
func (k ShiftKind) IsWeekendDay() bool {
	return !k.IsNight()
}

// kindOrder fixes the column order used when exporting a schedule: Saturday
// slots, then Sunday slots, then nights in week order starting Sunday.
var kindOrder = map[ShiftKind]int{
	KindSaturdayReception: 0,
	KindSaturdayLate:      1,
	KindSaturdayShort:     2,
	KindSundayEarly:       3,
	KindSundayLate:        4,
	KindSundayHalf:        5,
	KindNightSunMon:       6,
	KindNightMonTue:       7,
	KindNightTueWed:       8,
	KindNightWedThu:       9,
	KindNightThuFri:       10,
	KindNightFriSat:       11,
	KindNightSatSun:       12,
}

// ShiftSlot is a concrete instance of a ShiftKind on a specific date.
type ShiftSlot struct {
	Kind ShiftKind `json:"kind"`
	Date Date      `json:"date"`
}

// Assignment binds a staff member to a slot. Paired is only meaningful for
// night slots staffed by two people; it is false for solo nights and for
// every daytime slot.
type Assignment struct {
	StaffID StaffID   `json:"staff_id"`
	Slot    ShiftSlot `json:"slot"`
	Paired  bool      `json:"paired"`
}

// Schedule is the complete set of assignments for one quarter.
type Schedule struct {
	QuarterStart Date         `json:"quarter_start"`
	QuarterEnd   Date         `json:"quarter_end"`
	Assignments  []Assignment `json:"assignments"`
}

// StaffAssignments returns every assignment belonging to the given staff
// member, in chronological order.
func (s *Schedule) StaffAssignments(id StaffID) []Assignment {
	var out []Assignment
	for _, a := range s.Assignments {
		if a.StaffID == id {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out
}

// SlotAssignments returns every assignment made against the given slot.
// For a paired night this has two entries; otherwise at most one.
func (s *Schedule) SlotAssignments(slot ShiftSlot) []Assignment {
	var out []Assignment
	for _, a := range s.Assignments {
		if a.Slot == slot {
			out = append(out, a)
		}
	}
	return out
}

// EffectiveNights returns a staff member's total fairness-weighted night
// count across the schedule, using the given roster to look up role and
// per-assignment pairing.
func (s *Schedule) EffectiveNights(id StaffID, roster map[StaffID]Staff) float64 {
	staff, ok := roster[id]
	if !ok {
		return 0
	}
	total := 0.0
	for _, a := range s.Assignments {
		if a.StaffID != id || !a.Slot.Kind.IsNight() {
			continue
		}
		total += staff.EffectiveNightWeight(a.Paired)
	}
	return total
}

// WeekendCount returns the number of weekend daytime shifts (Saturday or
// Sunday, not nights) assigned to the given staff member.
func (s *Schedule) WeekendCount(id StaffID) int {
	n := 0
	for _, a := range s.Assignments {
		if a.StaffID == id && a.Slot.Kind.IsWeekendDay() {
			n++
		}
	}
	return n
}

// TotalNotdienst returns the raw count of night assignments (unweighted),
// for capacity checks such as an intern's per-quarter night cap.
func (s *Schedule) TotalNotdienst(id StaffID) int {
	n := 0
	for _, a := range s.Assignments {
		if a.StaffID == id && a.Slot.Kind.IsNight() {
			n++
		}
	}
	return n
}

func sortAssignments(a []Assignment) {
	sort.Slice(a, func(i, j int) bool {
		if a[i].Slot.Date != a[j].Slot.Date {
			return a[i].Slot.Date.Before(a[j].Slot.Date)
		}
		return kindOrder[a[i].Slot.Kind] < kindOrder[a[j].Slot.Kind]
	})
}

// SortedAssignments returns a copy of the schedule's assignments in the
// canonical export order: by date, then by slot kind within the date.
func (s *Schedule) SortedAssignments() []Assignment {
	out := make([]Assignment, len(s.Assignments))
	copy(out, s.Assignments)
	sortAssignments(out)
	return out
}
