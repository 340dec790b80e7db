package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vetroster/oncall/internal/handler"
)

func staffFixture() []handler.StaffInput {
	return []handler.StaffInput{
		{ID: "anika", Name: "Anika", Adult: true, Hours: 40, Role: "TFA", Department: "station", Reception: true, NDPossible: true, NDMinConsecutive: 2},
		{ID: "bjoern", Name: "Bjoern", Adult: true, Hours: 40, Role: "TFA", Department: "op", Reception: true, NDPossible: true, NDMinConsecutive: 2},
		{ID: "clara", Name: "Clara", Adult: true, Hours: 32, Role: "TFA", Department: "station", Reception: true, NDPossible: true, NDMinConsecutive: 2},
		{ID: "dima", Name: "Dima", Adult: true, Hours: 40, Role: "TFA", Department: "op", Reception: true, NDPossible: true, NDMinConsecutive: 2},
		{ID: "elif", Name: "Elif", Adult: true, Hours: 20, Role: "Azubi", Department: "station", NDPossible: true, NDAlone: false, NDMinConsecutive: 1},
		{ID: "finn", Name: "Finn", Adult: true, Hours: 20, Role: "Azubi", Department: "op", NDPossible: true, NDAlone: false, NDMinConsecutive: 1},
	}
}

func TestScheduleSolve_ValidFixtureReturnsSchedule(t *testing.T) {
	body, err := json.Marshal(handler.SolveRequest{
		QuarterStart:     "2026-01-01",
		Staff:            staffFixture(),
		TimeLimitSeconds: 5,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/solve", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.NewScheduleHandler().Solve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp handler.SolveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Schedule == nil {
		t.Fatal("expected a schedule in the response")
	}
	if len(resp.Schedule.Assignments) == 0 {
		t.Error("expected at least one assignment")
	}
}

func TestScheduleSolve_RejectsMalformedQuarterStart(t *testing.T) {
	body, _ := json.Marshal(handler.SolveRequest{
		QuarterStart: "not-a-date",
		Staff:        staffFixture(),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/solve", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.NewScheduleHandler().Solve(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var errResp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp["error"] != true {
		t.Error("expected error envelope")
	}
}

func TestScheduleSolve_RejectsNonPOST(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/schedule/solve", nil)
	rec := httptest.NewRecorder()

	handler.NewScheduleHandler().Solve(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for GET, got %d", rec.Code)
	}
}

func TestStatsFairness_ReturnsReportForEachRole(t *testing.T) {
	solveBody, _ := json.Marshal(handler.SolveRequest{
		QuarterStart:     "2026-01-01",
		Staff:            staffFixture(),
		TimeLimitSeconds: 5,
	})
	solveReq := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/solve", bytes.NewReader(solveBody))
	solveRec := httptest.NewRecorder()
	handler.NewScheduleHandler().Solve(solveRec, solveReq)

	var solved handler.SolveResponse
	if err := json.Unmarshal(solveRec.Body.Bytes(), &solved); err != nil {
		t.Fatalf("decode solve response: %v", err)
	}
	if solved.Schedule == nil {
		t.Fatal("solve did not produce a schedule to report on")
	}

	fairnessBody, _ := json.Marshal(handler.FairnessRequest{
		QuarterStart: "2026-01-01",
		Staff:        staffFixture(),
		Schedule:     *solved.Schedule,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stats/fairness", bytes.NewReader(fairnessBody))
	rec := httptest.NewRecorder()

	handler.NewStatsHandler().Fairness(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var fairnessResp handler.FairnessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &fairnessResp); err != nil {
		t.Fatalf("decode fairness response: %v", err)
	}
	if len(fairnessResp.Report.Groups) == 0 {
		t.Error("expected at least one role group in the fairness report")
	}
}

func TestStatsFairness_RejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stats/fairness", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	handler.NewStatsHandler().Fairness(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
