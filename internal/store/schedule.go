package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vetroster/oncall/pkg/model"
)

// ScheduleStore persists solved quarters. Each solve is stored as one row
// keyed by a generated run ID, with the assignment list kept as JSON — the
// same representation the HTTP and CLI layers already round-trip through.
type ScheduleStore struct {
	db DB
}

// NewScheduleStore builds a ScheduleStore over db.
func NewScheduleStore(db DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// ScheduleRun is one persisted solve outcome.
type ScheduleRun struct {
	ID         uuid.UUID
	Schedule   model.Schedule
	SolvedAt   time.Time
	SolverTag  string // status string, e.g. "optimal"
}

// Save inserts a new run and returns its generated ID.
func (s *ScheduleStore) Save(ctx context.Context, sched model.Schedule, solverTag string) (uuid.UUID, error) {
	id := uuid.New()
	payload, err := json.Marshal(sched.SortedAssignments())
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal assignments: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schedule_runs (id, quarter_start, quarter_end, assignments, solver_status, solved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, sched.QuarterStart.String(), sched.QuarterEnd.String(), payload, solverTag, time.Now())
	if err != nil {
		return uuid.Nil, fmt.Errorf("save schedule run: %w", err)
	}
	return id, nil
}

// Get loads one persisted run by ID.
func (s *ScheduleStore) Get(ctx context.Context, id uuid.UUID) (*ScheduleRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, quarter_start, quarter_end, assignments, solver_status, solved_at
		FROM schedule_runs WHERE id = $1
	`, id)

	var run ScheduleRun
	var quarterStart, quarterEnd string
	var payload []byte
	if err := row.Scan(&run.ID, &quarterStart, &quarterEnd, &payload, &run.SolverTag, &run.SolvedAt); err != nil {
		return nil, fmt.Errorf("get schedule run %s: %w", id, err)
	}

	var assignments []model.Assignment
	if err := json.Unmarshal(payload, &assignments); err != nil {
		return nil, fmt.Errorf("unmarshal assignments for run %s: %w", id, err)
	}

	start, err := model.ParseDate(quarterStart)
	if err != nil {
		return nil, err
	}
	end, err := model.ParseDate(quarterEnd)
	if err != nil {
		return nil, err
	}

	run.Schedule = model.Schedule{QuarterStart: start, QuarterEnd: end, Assignments: assignments}
	return &run, nil
}
