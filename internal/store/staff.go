package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vetroster/oncall/pkg/model"
)

// StaffStore persists the clinic's roster of employees eligible for duty.
type StaffStore struct {
	db DB
}

// NewStaffStore builds a StaffStore over db.
func NewStaffStore(db DB) *StaffStore {
	return &StaffStore{db: db}
}

// Upsert inserts staff or replaces the existing row with the same ID.
func (s *StaffStore) Upsert(ctx context.Context, staff model.Staff) error {
	exceptions, err := marshalExceptions(staff.NDExceptions)
	if err != nil {
		return fmt.Errorf("marshal nd_exceptions: %w", err)
	}
	var birthdayMonth, birthdayDay sql.NullInt64
	if staff.Birthday != nil {
		birthdayMonth = sql.NullInt64{Int64: int64(staff.Birthday.Month), Valid: true}
		birthdayDay = sql.NullInt64{Int64: int64(staff.Birthday.Day), Valid: true}
	}

	query := `
		INSERT INTO staff (
			id, name, adult, hours, role, department, reception,
			nd_possible, nd_alone, nd_max_consecutive, nd_min_consecutive,
			nd_exceptions, birthday_month, birthday_day
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			adult = EXCLUDED.adult,
			hours = EXCLUDED.hours,
			role = EXCLUDED.role,
			department = EXCLUDED.department,
			reception = EXCLUDED.reception,
			nd_possible = EXCLUDED.nd_possible,
			nd_alone = EXCLUDED.nd_alone,
			nd_max_consecutive = EXCLUDED.nd_max_consecutive,
			nd_min_consecutive = EXCLUDED.nd_min_consecutive,
			nd_exceptions = EXCLUDED.nd_exceptions,
			birthday_month = EXCLUDED.birthday_month,
			birthday_day = EXCLUDED.birthday_day
	`
	_, err = s.db.ExecContext(ctx, query,
		staff.ID, staff.Name, staff.Adult, staff.Hours, staff.Role, staff.Department, staff.Reception,
		staff.NDPossible, staff.NDAlone, nullableInt(staff.NDMaxConsecutive), staff.NDMinConsecutive,
		exceptions, birthdayMonth, birthdayDay,
	)
	if err != nil {
		return fmt.Errorf("upsert staff %s: %w", staff.ID, err)
	}
	return nil
}

// List returns every staff record in the clinic's roster.
func (s *StaffStore) List(ctx context.Context) ([]model.Staff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, adult, hours, role, department, reception,
		       nd_possible, nd_alone, nd_max_consecutive, nd_min_consecutive,
		       nd_exceptions, birthday_month, birthday_day
		FROM staff ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var st model.Staff
		var maxConsec sql.NullInt64
		var birthdayMonth, birthdayDay sql.NullInt64
		var exceptionsJSON []byte

		if err := rows.Scan(
			&st.ID, &st.Name, &st.Adult, &st.Hours, &st.Role, &st.Department, &st.Reception,
			&st.NDPossible, &st.NDAlone, &maxConsec, &st.NDMinConsecutive,
			&exceptionsJSON, &birthdayMonth, &birthdayDay,
		); err != nil {
			return nil, fmt.Errorf("scan staff row: %w", err)
		}

		if maxConsec.Valid {
			v := int(maxConsec.Int64)
			st.NDMaxConsecutive = &v
		}
		if birthdayMonth.Valid && birthdayDay.Valid {
			st.Birthday = &model.MonthDay{Month: int(birthdayMonth.Int64), Day: int(birthdayDay.Int64)}
		}
		exceptions, err := unmarshalExceptions(exceptionsJSON)
		if err != nil {
			return nil, fmt.Errorf("unmarshal nd_exceptions for %s: %w", st.ID, err)
		}
		st.NDExceptions = exceptions

		out = append(out, st)
	}
	return out, rows.Err()
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func marshalExceptions(exceptions map[int]struct{}) ([]byte, error) {
	weekdays := make([]int, 0, len(exceptions))
	for wd := range exceptions {
		weekdays = append(weekdays, wd)
	}
	return json.Marshal(weekdays)
}

func unmarshalExceptions(data []byte) (map[int]struct{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var weekdays []int
	if err := json.Unmarshal(data, &weekdays); err != nil {
		return nil, err
	}
	out := make(map[int]struct{}, len(weekdays))
	for _, wd := range weekdays {
		out[wd] = struct{}{}
	}
	return out, nil
}
