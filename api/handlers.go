/*
handlers.go - HTTP API handlers for the staffing settlement engine

PURPOSE:
  Exposes the settlement engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Continuity & carryover:
    GET    /api/continuity              Tenure count for a staffing key
    GET    /api/carryover               Roll-forward candidates between months

  Assignments:
    POST   /api/assignments             Register an assignment
    DELETE /api/assignments/{id}        Soft-delete an assignment
    POST   /api/assignments/{id}/work   Log a work record

  Work records:
    POST   /api/work/{id}/approve       Approve (or re-approve)
    POST   /api/work/{id}/remand        Remand with comment
    POST   /api/work/{id}/dispute       Flag a client dispute
    GET    /api/assignments/{id}/work   Work history

  Settlement:
    POST   /api/settlement/run          Run monthly settlement
    GET    /api/invoices                Client invoices for a month
    GET    /api/summaries               Secretary summaries for a month

  Incentive:
    POST   /api/incentive/apply         Bulk-apply tenure incentive rates

  Reference data:
    POST   /api/clients, /api/secretaries, /api/ranks

  Utility:
    GET    /api/months/clamp            Clamp a requested month

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate assignment key, invalid state transition)
  - 500: Internal errors
  The engine's error classification helpers drive the mapping; handlers
  never inspect concrete error types.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/engine.go: Domain facade these handlers delegate to
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/assignia/staffing-engine/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine
}

// NewHandler creates a new handler over the engine facade.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{Engine: eng}
}

// =============================================================================
// CONTINUITY & CARRYOVER
// =============================================================================

// GetContinuity returns the consecutive-month tenure count for a staffing key.
// GET /api/continuity?client_id=&secretary_id=&rank_id=&month=YYYY-MM
func (h *Handler) GetContinuity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := engine.ContinuityKey{
		ClientID:    engine.ClientID(q.Get("client_id")),
		SecretaryID: engine.SecretaryID(q.Get("secretary_id")),
		RankID:      engine.RankID(q.Get("rank_id")),
	}
	if key.ClientID == "" || key.SecretaryID == "" || key.RankID == "" {
		writeError(w, http.StatusBadRequest, "client_id, secretary_id and rank_id are required", nil)
		return
	}

	month, err := engine.ParseMonth(q.Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	count, err := h.Engine.ContinuityCount(r.Context(), key, month)
	if err != nil {
		writeEngineError(w, "Failed to compute continuity", err)
		return
	}

	effective := engine.Clamp(month, h.Engine.Clock().Now())
	writeJSON(w, http.StatusOK, ContinuityDTO{
		ClientID:       string(key.ClientID),
		SecretaryID:    string(key.SecretaryID),
		RankID:         string(key.RankID),
		RequestedMonth: month.String(),
		EffectiveMonth: effective.String(),
		Count:          count,
	})
}

// GetCarryoverCandidates returns assignments present in the source month whose
// staffing key is absent from the destination month.
// GET /api/carryover?source=YYYY-MM&destination=YYYY-MM
func (h *Handler) GetCarryoverCandidates(w http.ResponseWriter, r *http.Request) {
	source, err := engine.ParseMonth(r.URL.Query().Get("source"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid source month", err)
		return
	}
	destination, err := engine.ParseMonth(r.URL.Query().Get("destination"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid destination month", err)
		return
	}

	candidates, err := h.Engine.CarryoverCandidates(r.Context(), source, destination)
	if err != nil {
		writeEngineError(w, "Failed to plan carryover", err)
		return
	}

	dtos := make([]CarryoverCandidateDTO, len(candidates))
	for i, c := range candidates {
		dtos[i] = toCarryoverCandidateDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

// RegisterAssignment creates one assignment row for a target month.
// POST /api/assignments
func (h *Handler) RegisterAssignment(w http.ResponseWriter, r *http.Request) {
	var req RegisterAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ClientID == "" || req.SecretaryID == "" || req.RankID == "" {
		writeError(w, http.StatusBadRequest, "client_id, secretary_id and rank_id are required", nil)
		return
	}

	month, err := engine.ParseMonth(req.TargetMonth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_month", err)
		return
	}

	rates := make(map[string]decimal.Decimal, 6)
	for field, raw := range map[string]string{
		"client_base_pay":     req.ClientBasePay,
		"client_increase":     req.ClientIncrease,
		"client_incentive":    req.ClientIncentive,
		"secretary_base_pay":  req.SecretaryBasePay,
		"secretary_increase":  req.SecretaryIncrease,
		"secretary_incentive": req.SecretaryIncentive,
	} {
		if raw == "" {
			rates[field] = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+field, err)
			return
		}
		rates[field] = d
	}

	record := engine.AssignmentRecord{
		ClientID:           engine.ClientID(req.ClientID),
		SecretaryID:        engine.SecretaryID(req.SecretaryID),
		RankID:             engine.RankID(req.RankID),
		TargetMonth:        month,
		ClientBasePay:      rates["client_base_pay"],
		ClientIncrease:     rates["client_increase"],
		ClientIncentive:    rates["client_incentive"],
		SecretaryBasePay:   rates["secretary_base_pay"],
		SecretaryIncrease:  rates["secretary_increase"],
		SecretaryIncentive: rates["secretary_incentive"],
	}

	created, err := h.Engine.Workflow.RegisterAssignment(r.Context(), record)
	if err != nil {
		writeEngineError(w, "Failed to register assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(*created))
}

// DeleteAssignment soft-deletes an assignment.
// DELETE /api/assignments/{id}
func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id := engine.AssignmentID(chi.URLParam(r, "id"))
	if err := h.Engine.Workflow.DeleteAssignment(r.Context(), id); err != nil {
		writeEngineError(w, "Failed to delete assignment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// WORK RECORDS
// =============================================================================

// LogWork records one unit of work against an assignment.
// POST /api/assignments/{id}/work
func (h *Handler) LogWork(w http.ResponseWriter, r *http.Request) {
	assignmentID := engine.AssignmentID(chi.URLParam(r, "id"))

	var req LogWorkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	workDate, err := time.Parse("2006-01-02", req.WorkDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid work_date (expected YYYY-MM-DD)", err)
		return
	}

	record := engine.WorkRecord{
		AssignmentID:    assignmentID,
		WorkDate:        workDate,
		DurationMinutes: req.DurationMinutes,
		Description:     req.Description,
	}
	if req.StartAt != "" {
		record.StartAt, err = time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_at", err)
			return
		}
	}
	if req.EndAt != "" {
		record.EndAt, err = time.Parse(time.RFC3339, req.EndAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_at", err)
			return
		}
	}

	created, err := h.Engine.Workflow.LogWork(r.Context(), record)
	if err != nil {
		writeEngineError(w, "Failed to log work", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkRecordDTO(*created))
}

// ListWork returns the work history for an assignment.
// GET /api/assignments/{id}/work
func (h *Handler) ListWork(w http.ResponseWriter, r *http.Request) {
	id := engine.AssignmentID(chi.URLParam(r, "id"))

	// 404 for unknown assignments rather than an empty list.
	if _, err := h.Engine.Store().GetAssignment(r.Context(), id); err != nil {
		writeEngineError(w, "Failed to list work", err)
		return
	}

	records, err := h.Engine.Store().ListWorkByAssignment(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to list work", err)
		return
	}

	dtos := make([]WorkRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toWorkRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveWork approves a work record (first approval or re-approval).
// POST /api/work/{id}/approve
func (h *Handler) ApproveWork(w http.ResponseWriter, r *http.Request) {
	id := engine.WorkID(chi.URLParam(r, "id"))
	record, err := h.Engine.Workflow.ApproveWork(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to approve work", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkRecordDTO(*record))
}

// RemandWork sends an approved record back with a comment.
// POST /api/work/{id}/remand
func (h *Handler) RemandWork(w http.ResponseWriter, r *http.Request) {
	id := engine.WorkID(chi.URLParam(r, "id"))

	var req WorkCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record, err := h.Engine.Workflow.RemandWork(r.Context(), id, req.Comment)
	if err != nil {
		writeEngineError(w, "Failed to remand work", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkRecordDTO(*record))
}

// DisputeWork flags a client dispute against a work record.
// POST /api/work/{id}/dispute
func (h *Handler) DisputeWork(w http.ResponseWriter, r *http.Request) {
	id := engine.WorkID(chi.URLParam(r, "id"))

	var req WorkCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record, err := h.Engine.Workflow.DisputeWork(r.Context(), id, req.Comment)
	if err != nil {
		writeEngineError(w, "Failed to dispute work", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkRecordDTO(*record))
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// RunSettlement recomputes and replaces all settlement snapshots for a month.
// POST /api/settlement/run
func (h *Handler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	var req RunSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	month, err := engine.ParseMonth(req.TargetMonth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_month", err)
		return
	}

	result, err := h.Engine.RunSettlement(r.Context(), month)
	if err != nil {
		writeEngineError(w, "Settlement run failed", err)
		return
	}

	dto := SettlementResultDTO{
		TargetMonth: result.TargetMonth.String(),
		Invoices:    make([]ClientInvoiceDTO, len(result.Invoices)),
		Summaries:   make([]SecretarySummaryDTO, len(result.Summaries)),
	}
	for i, inv := range result.Invoices {
		dto.Invoices[i] = toClientInvoiceDTO(inv)
	}
	for i, sum := range result.Summaries {
		dto.Summaries[i] = toSecretarySummaryDTO(sum)
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListInvoices returns the client invoices for a month.
// GET /api/invoices?month=YYYY-MM
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	month, err := engine.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	invoices, err := h.Engine.Store().ListClientInvoices(r.Context(), month)
	if err != nil {
		writeEngineError(w, "Failed to list invoices", err)
		return
	}

	dtos := make([]ClientInvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toClientInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListSummaries returns the secretary summaries for a month.
// GET /api/summaries?month=YYYY-MM
func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	month, err := engine.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	summaries, err := h.Engine.Store().ListSecretarySummaries(r.Context(), month)
	if err != nil {
		writeEngineError(w, "Failed to list summaries", err)
		return
	}

	dtos := make([]SecretarySummaryDTO, len(summaries))
	for i, sum := range summaries {
		dtos[i] = toSecretarySummaryDTO(sum)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// INCENTIVE
// =============================================================================

// ApplyIncentive bulk-applies tenure incentive rates to all non-PM
// assignments for (client, secretary, month).
// POST /api/incentive/apply
func (h *Handler) ApplyIncentive(w http.ResponseWriter, r *http.Request) {
	var req ApplyIncentiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	month, err := engine.ParseMonth(req.TargetMonth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_month", err)
		return
	}
	clientRate, err := decimal.NewFromString(req.ClientRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid client_rate", err)
		return
	}
	secretaryRate, err := decimal.NewFromString(req.SecretaryRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid secretary_rate", err)
		return
	}

	affected, err := h.Engine.ApplyTenureIncentive(r.Context(),
		engine.ClientID(req.ClientID), engine.SecretaryID(req.SecretaryID),
		month, clientRate, secretaryRate)
	if err != nil {
		writeEngineError(w, "Failed to apply incentive", err)
		return
	}
	writeJSON(w, http.StatusOK, ApplyIncentiveResponse{AffectedAssignments: affected})
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// CreateClient registers a client company.
// POST /api/clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = engine.NewID()
	}

	client := engine.Client{
		ID:        engine.ClientID(req.ID),
		Name:      req.Name,
		CreatedAt: h.Engine.Clock().Now(),
	}
	if err := h.Engine.Store().SaveClient(r.Context(), client); err != nil {
		writeEngineError(w, "Failed to save client", err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

// CreateSecretary registers a secretary.
// POST /api/secretaries
func (h *Handler) CreateSecretary(w http.ResponseWriter, r *http.Request) {
	var req CreateSecretaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = engine.NewID()
	}

	secretary := engine.Secretary{
		ID:        engine.SecretaryID(req.ID),
		Name:      req.Name,
		CreatedAt: h.Engine.Clock().Now(),
	}
	if err := h.Engine.Store().SaveSecretary(r.Context(), secretary); err != nil {
		writeEngineError(w, "Failed to save secretary", err)
		return
	}
	writeJSON(w, http.StatusCreated, secretary)
}

// CreateRank registers a task rank.
// POST /api/ranks
func (h *Handler) CreateRank(w http.ResponseWriter, r *http.Request) {
	var req CreateRankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = engine.NewID()
	}

	rank := engine.Rank{
		ID:        engine.RankID(req.ID),
		Name:      req.Name,
		IsPM:      req.IsPM,
		CreatedAt: h.Engine.Clock().Now(),
	}
	if err := h.Engine.Store().SaveRank(r.Context(), rank); err != nil {
		writeEngineError(w, "Failed to save rank", err)
		return
	}
	writeJSON(w, http.StatusCreated, rank)
}

// =============================================================================
// UTILITY
// =============================================================================

// ClampMonth echoes a requested month with the clamp rule applied.
// GET /api/months/clamp?month=YYYY-MM
func (h *Handler) ClampMonth(w http.ResponseWriter, r *http.Request) {
	month, err := engine.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	effective := engine.Clamp(month, h.Engine.Clock().Now())
	writeJSON(w, http.StatusOK, MonthClampDTO{
		RequestedMonth: month.String(),
		EffectiveMonth: effective.String(),
		Clamped:        !effective.Equal(month),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps domain errors to HTTP status codes using the
// engine's classification helpers.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
