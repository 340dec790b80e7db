// Package handler serves the roster engine over HTTP.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vetroster/oncall/internal/metrics"
	"github.com/vetroster/oncall/pkg/apperr"
	"github.com/vetroster/oncall/pkg/calendar"
	"github.com/vetroster/oncall/pkg/eligibility"
	"github.com/vetroster/oncall/pkg/engine"
	"github.com/vetroster/oncall/pkg/fairness"
	"github.com/vetroster/oncall/pkg/model"
	"github.com/vetroster/oncall/pkg/validator"
)

// ScheduleHandler exposes the roster engine's solve operation.
type ScheduleHandler struct{}

// NewScheduleHandler builds a ScheduleHandler.
func NewScheduleHandler() *ScheduleHandler {
	return &ScheduleHandler{}
}

// StaffInput is the wire shape of one model.Staff record.
type StaffInput struct {
	ID               model.StaffID    `json:"id"`
	Name             string           `json:"name"`
	Adult            bool             `json:"adult"`
	Hours            int              `json:"hours"`
	Role             model.Role       `json:"role"`
	Department       model.Department `json:"department"`
	Reception        bool             `json:"reception"`
	NDPossible       bool             `json:"nd_possible"`
	NDAlone          bool             `json:"nd_alone"`
	NDMaxConsecutive *int             `json:"nd_max_consecutive,omitempty"`
	NDMinConsecutive int              `json:"nd_min_consecutive"`
	NDExceptions     []int            `json:"nd_exceptions,omitempty"`
	Birthday         *string          `json:"birthday,omitempty"` // MM-DD
}

// ToStaff converts the wire representation into a model.Staff, parsing the
// optional MM-DD birthday string.
func (in StaffInput) ToStaff() (model.Staff, error) {
	st := model.Staff{
		ID:               in.ID,
		Name:             in.Name,
		Adult:            in.Adult,
		Hours:            in.Hours,
		Role:             in.Role,
		Department:       in.Department,
		Reception:        in.Reception,
		NDPossible:       in.NDPossible,
		NDAlone:          in.NDAlone,
		NDMaxConsecutive: in.NDMaxConsecutive,
		NDMinConsecutive: in.NDMinConsecutive,
	}
	if len(in.NDExceptions) > 0 {
		st.NDExceptions = make(map[int]struct{}, len(in.NDExceptions))
		for _, wd := range in.NDExceptions {
			st.NDExceptions[wd] = struct{}{}
		}
	}
	if in.Birthday != nil {
		var month, day int
		if _, err := time.Parse("01-02", *in.Birthday); err != nil {
			return model.Staff{}, apperr.InvalidInput("birthday", "must be MM-DD")
		}
		parsed, _ := time.Parse("01-02", *in.Birthday)
		month, day = int(parsed.Month()), parsed.Day()
		st.Birthday = &model.MonthDay{Month: month, Day: day}
	}
	return st, nil
}

// SolveRequest is the wire shape of one Solve call.
type SolveRequest struct {
	QuarterStart            string                      `json:"quarter_start"` // YYYY-MM-DD
	Staff                    []StaffInput                `json:"staff"`
	Vacations                map[model.StaffID][]string  `json:"vacations,omitempty"` // staff -> YYYY-MM-DD list
	TimeLimitSeconds         int                         `json:"time_limit_seconds,omitempty"`
	Seed                     *int64                      `json:"seed,omitempty"`
	NumWorkers               int                         `json:"num_workers,omitempty"`
	EnforceMinParticipation  bool                        `json:"enforce_min_participation,omitempty"`
	MaxFTEDeviation          float64                     `json:"max_fte_deviation,omitempty"`
}

// SolveResponse is the wire shape of one Solve outcome.
type SolveResponse struct {
	Status                   engine.Status                     `json:"status"`
	Feasible                 bool                              `json:"feasible"`
	Schedule                 *model.Schedule                   `json:"schedule,omitempty"`
	Violations               []violationView                   `json:"violations,omitempty"`
	SoftPenalty              float64                           `json:"soft_penalty"`
	UnsatisfiableConstraints []engine.UnsatisfiableConstraint  `json:"unsatisfiable_constraints,omitempty"`
}

type violationView struct {
	Rule     string          `json:"rule"`
	Severity string          `json:"severity"`
	Staff    []model.StaffID `json:"staff,omitempty"`
	Dates    []model.Date    `json:"dates,omitempty"`
	Message  string          `json:"message"`
}

// ToEngineInputs converts the wire request into the arguments engine.Solve
// expects. It is shared by the HTTP handler and the CLI's solve command so
// both parse fixtures identically.
func (req SolveRequest) ToEngineInputs() (model.Date, []model.Staff, map[model.StaffID]map[time.Time]struct{}, engine.Options, error) {
	quarterStart, err := model.ParseDate(req.QuarterStart)
	if err != nil {
		return model.Date{}, nil, nil, engine.Options{}, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid quarter_start")
	}

	staff := make([]model.Staff, 0, len(req.Staff))
	for _, in := range req.Staff {
		st, err := in.ToStaff()
		if err != nil {
			return model.Date{}, nil, nil, engine.Options{}, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid staff record "+string(in.ID))
		}
		staff = append(staff, st)
	}

	vacations := make(map[model.StaffID]map[time.Time]struct{}, len(req.Vacations))
	for staffID, dates := range req.Vacations {
		days := make(map[time.Time]struct{}, len(dates))
		for _, raw := range dates {
			d, err := model.ParseDate(raw)
			if err != nil {
				return model.Date{}, nil, nil, engine.Options{}, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid vacation date for "+string(staffID))
			}
			days[d.Time()] = struct{}{}
		}
		vacations[staffID] = days
	}

	opts := engine.DefaultOptions()
	if req.TimeLimitSeconds > 0 {
		opts.TimeLimit = time.Duration(req.TimeLimitSeconds) * time.Second
	}
	if req.Seed != nil {
		opts.Seed = req.Seed
	}
	if req.NumWorkers > 0 {
		opts.NumWorkers = req.NumWorkers
	}
	opts.EnforceMinParticipation = req.EnforceMinParticipation
	if req.MaxFTEDeviation > 0 {
		opts.MaxFTEDeviation = req.MaxFTEDeviation
	}

	return quarterStart, staff, vacations, opts, nil
}

// ToSolveResponse adapts an engine.Result into its wire representation.
func ToSolveResponse(result engine.Result) SolveResponse {
	resp := SolveResponse{
		Status:                   result.Status,
		Feasible:                 result.Feasible,
		Schedule:                 result.Schedule,
		SoftPenalty:              result.SoftPenalty.Total(),
		UnsatisfiableConstraints: result.UnsatisfiableConstraints,
	}
	for _, v := range result.Violations {
		resp.Violations = append(resp.Violations, violationView{
			Rule: v.Rule, Severity: string(v.Severity), Staff: v.Staff, Dates: v.Dates, Message: v.Message,
		})
	}
	return resp
}

// Solve handles POST /api/v1/schedule/solve.
func (h *ScheduleHandler) Solve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, apperr.New(apperr.CodeInvalidInput, "only POST is supported"))
		return
	}

	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Wrap(err, apperr.CodeInvalidInput, "failed to parse request body"))
		return
	}

	quarterStart, staff, vacations, opts, err := req.ToEngineInputs()
	if err != nil {
		respondError(w, err.(*apperr.Error))
		return
	}

	start := time.Now()
	result, err := engine.Solve(r.Context(), staff, quarterStart.Time(), vacations, opts)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordSolve("error", duration)
		if appErr, ok := err.(*apperr.Error); ok {
			respondError(w, appErr)
			return
		}
		respondError(w, apperr.Wrap(err, apperr.CodeInternal, "solve failed"))
		return
	}

	metrics.RecordSolve(string(result.Status), duration)
	recordScheduleMetrics(result, staff)

	respondJSON(w, http.StatusOK, ToSolveResponse(result))
}

// recordScheduleMetrics publishes fairness, coverage, and violation figures
// for a solved schedule to the process-wide registry.
func recordScheduleMetrics(result engine.Result, staff []model.Staff) {
	if result.Schedule == nil {
		return
	}

	for _, v := range result.Violations {
		if v.Severity == validator.Hard {
			metrics.RecordConstraintViolation(v.Rule)
		}
	}

	roster := make(map[model.StaffID]model.Staff, len(staff))
	for _, st := range staff {
		roster[st.ID] = st
	}
	report := fairness.Compute(result.Schedule, roster, eligibility.Absence{}, result.Schedule.QuarterStart, result.Schedule.QuarterEnd)
	metrics.SetFairnessGini(overallGini(report))

	required := calendar.Generate(result.Schedule.QuarterStart, result.Schedule.QuarterEnd)
	if len(required) > 0 {
		filled := make(map[model.ShiftSlot]struct{}, len(result.Schedule.Assignments))
		for _, a := range result.Schedule.Assignments {
			filled[a.Slot] = struct{}{}
		}
		metrics.SetCoverageRate(float64(len(filled)) / float64(len(required)))
	}
}

// overallGini averages each role group's Gini coefficient, weighted by
// group size, into a single figure for the whole roster.
func overallGini(report fairness.Report) float64 {
	var weightedSum float64
	var totalStaff int
	for _, g := range report.Groups {
		weightedSum += g.Gini * float64(len(g.Loads))
		totalStaff += len(g.Loads)
	}
	if totalStaff == 0 {
		return 0
	}
	return weightedSum / float64(totalStaff)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}
