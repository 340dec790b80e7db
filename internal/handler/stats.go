package handler

import (
	"encoding/json"
	"net/http"

	"github.com/vetroster/oncall/pkg/apperr"
	"github.com/vetroster/oncall/pkg/eligibility"
	"github.com/vetroster/oncall/pkg/fairness"
	"github.com/vetroster/oncall/pkg/model"
)

// StatsHandler reports descriptive fairness statistics for an already-solved
// schedule; it never runs the solver itself.
type StatsHandler struct{}

// NewStatsHandler builds a StatsHandler.
func NewStatsHandler() *StatsHandler {
	return &StatsHandler{}
}

// FairnessRequest is the wire shape of one fairness report request.
type FairnessRequest struct {
	QuarterStart string         `json:"quarter_start"`
	Staff        []StaffInput   `json:"staff"`
	Schedule     model.Schedule `json:"schedule"`
}

// FairnessResponse wraps a fairness.Report for JSON transport.
type FairnessResponse struct {
	Report fairness.Report `json:"report"`
}

// Fairness handles POST /api/v1/stats/fairness.
func (h *StatsHandler) Fairness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, apperr.New(apperr.CodeInvalidInput, "only POST is supported"))
		return
	}

	var req FairnessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Wrap(err, apperr.CodeInvalidInput, "failed to parse request body"))
		return
	}

	roster := make(map[model.StaffID]model.Staff, len(req.Staff))
	for _, in := range req.Staff {
		st, err := in.ToStaff()
		if err != nil {
			respondError(w, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid staff record "+string(in.ID)))
			return
		}
		roster[st.ID] = st
	}

	report := fairness.Compute(&req.Schedule, roster, eligibility.Absence{}, req.Schedule.QuarterStart, req.Schedule.QuarterEnd)
	respondJSON(w, http.StatusOK, FairnessResponse{Report: report})
}
