/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Decimal amounts are serialized as strings ("1800", "1234.5") so clients
  never see float rounding artifacts.

VALIDATION:
  Validation is done in handlers and in the engine, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/assignia/staffing-engine/engine"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RegisterAssignmentRequest creates one assignment row for a target month.
type RegisterAssignmentRequest struct {
	ClientID    string `json:"client_id"`
	SecretaryID string `json:"secretary_id"`
	RankID      string `json:"rank_id"`
	TargetMonth string `json:"target_month"`

	ClientBasePay      string `json:"client_base_pay"`
	ClientIncrease     string `json:"client_increase,omitempty"`
	ClientIncentive    string `json:"client_incentive,omitempty"`
	SecretaryBasePay   string `json:"secretary_base_pay"`
	SecretaryIncrease  string `json:"secretary_increase,omitempty"`
	SecretaryIncentive string `json:"secretary_incentive,omitempty"`
}

// AssignmentDTO represents an assignment in API responses.
type AssignmentDTO struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	SecretaryID string `json:"secretary_id"`
	RankID      string `json:"rank_id"`
	TargetMonth string `json:"target_month"`

	ClientBasePay      string `json:"client_base_pay"`
	ClientIncrease     string `json:"client_increase"`
	ClientIncentive    string `json:"client_incentive"`
	SecretaryBasePay   string `json:"secretary_base_pay"`
	SecretaryIncrease  string `json:"secretary_increase"`
	SecretaryIncentive string `json:"secretary_incentive"`

	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CarryoverCandidateDTO is one roll-forward suggestion.
type CarryoverCandidateDTO struct {
	AssignmentID     string `json:"assignment_id"`
	ClientID         string `json:"client_id"`
	SecretaryID      string `json:"secretary_id"`
	RankID           string `json:"rank_id"`
	ClientName       string `json:"client_name"`
	SecretaryName    string `json:"secretary_name"`
	RankName         string `json:"rank_name"`
	TargetMonth      string `json:"target_month"`
	ClientBasePay    string `json:"client_base_pay"`
	SecretaryBasePay string `json:"secretary_base_pay"`
}

// ContinuityDTO is the tenure-count response.
type ContinuityDTO struct {
	ClientID       string `json:"client_id"`
	SecretaryID    string `json:"secretary_id"`
	RankID         string `json:"rank_id"`
	RequestedMonth string `json:"requested_month"`
	EffectiveMonth string `json:"effective_month"`
	Count          int    `json:"count"`
}

// LogWorkRequest records one unit of work against an assignment.
type LogWorkRequest struct {
	WorkDate        string `json:"work_date"`
	StartAt         string `json:"start_at,omitempty"`
	EndAt           string `json:"end_at,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	Description     string `json:"description,omitempty"`
}

// WorkCommentRequest carries the remand/dispute comment.
type WorkCommentRequest struct {
	Comment string `json:"comment"`
}

// WorkRecordDTO represents a work record in API responses.
type WorkRecordDTO struct {
	ID              string `json:"id"`
	AssignmentID    string `json:"assignment_id"`
	WorkDate        string `json:"work_date"`
	StartAt         string `json:"start_at,omitempty"`
	EndAt           string `json:"end_at,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	Description     string `json:"description,omitempty"`
	State           string `json:"state"`
	ApprovedAt      string `json:"approved_at,omitempty"`
	RemandedAt      string `json:"remanded_at,omitempty"`
	RemandComment   string `json:"remand_comment,omitempty"`
	Disputed        bool   `json:"disputed"`
	DisputedAt      string `json:"disputed_at,omitempty"`
	DisputeComment  string `json:"dispute_comment,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// RunSettlementRequest triggers a settlement run for one month.
type RunSettlementRequest struct {
	TargetMonth string `json:"target_month"`
}

// SettlementResultDTO is the settlement-run response.
type SettlementResultDTO struct {
	TargetMonth string                `json:"target_month"`
	Invoices    []ClientInvoiceDTO    `json:"invoices"`
	Summaries   []SecretarySummaryDTO `json:"summaries"`
}

// ClientInvoiceDTO is the client-side monthly settlement snapshot.
type ClientInvoiceDTO struct {
	ID            string `json:"id"`
	ClientID      string `json:"client_id"`
	TargetMonth   string `json:"target_month"`
	TotalAmount   string `json:"total_amount"`
	WorkUnitCount int    `json:"work_unit_count"`
	TotalMinutes  int    `json:"total_minutes"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// SecretarySummaryDTO is the secretary-side monthly snapshot.
type SecretarySummaryDTO struct {
	ID            string `json:"id"`
	SecretaryID   string `json:"secretary_id"`
	TargetMonth   string `json:"target_month"`
	TotalAmount   string `json:"total_amount"`
	WorkUnitCount int    `json:"work_unit_count"`
	TotalMinutes  int    `json:"total_minutes"`
	Status        string `json:"status"`
	FinalizedAt   string `json:"finalized_at,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// ApplyIncentiveRequest bulk-applies tenure incentive rates.
type ApplyIncentiveRequest struct {
	ClientID      string `json:"client_id"`
	SecretaryID   string `json:"secretary_id"`
	TargetMonth   string `json:"target_month"`
	ClientRate    string `json:"client_rate"`
	SecretaryRate string `json:"secretary_rate"`
}

// ApplyIncentiveResponse reports the propagation result.
type ApplyIncentiveResponse struct {
	AffectedAssignments int `json:"affected_assignments"`
}

// MonthClampDTO echoes a requested month with its clamped value.
type MonthClampDTO struct {
	RequestedMonth string `json:"requested_month"`
	EffectiveMonth string `json:"effective_month"`
	Clamped        bool   `json:"clamped"`
}

// CreateClientRequest / CreateSecretaryRequest / CreateRankRequest register
// reference data.
type CreateClientRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateSecretaryRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateRankRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IsPM bool   `json:"is_pm"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAssignmentDTO(a engine.AssignmentRecord) AssignmentDTO {
	return AssignmentDTO{
		ID:                 string(a.ID),
		ClientID:           string(a.ClientID),
		SecretaryID:        string(a.SecretaryID),
		RankID:             string(a.RankID),
		TargetMonth:        a.TargetMonth.String(),
		ClientBasePay:      a.ClientBasePay.String(),
		ClientIncrease:     a.ClientIncrease.String(),
		ClientIncentive:    a.ClientIncentive.String(),
		SecretaryBasePay:   a.SecretaryBasePay.String(),
		SecretaryIncrease:  a.SecretaryIncrease.String(),
		SecretaryIncentive: a.SecretaryIncentive.String(),
		Status:             string(a.Status),
		CreatedAt:          a.CreatedAt.Format(time.RFC3339),
	}
}

func toCarryoverCandidateDTO(s engine.AssignmentSummary) CarryoverCandidateDTO {
	return CarryoverCandidateDTO{
		AssignmentID:     string(s.AssignmentID),
		ClientID:         string(s.Key.ClientID),
		SecretaryID:      string(s.Key.SecretaryID),
		RankID:           string(s.Key.RankID),
		ClientName:       s.ClientName,
		SecretaryName:    s.SecretaryName,
		RankName:         s.RankName,
		TargetMonth:      s.TargetMonth.String(),
		ClientBasePay:    s.ClientBasePay.String(),
		SecretaryBasePay: s.SecretaryBasePay.String(),
	}
}

func toWorkRecordDTO(w engine.WorkRecord) WorkRecordDTO {
	dto := WorkRecordDTO{
		ID:              string(w.ID),
		AssignmentID:    string(w.AssignmentID),
		WorkDate:        w.WorkDate.Format("2006-01-02"),
		DurationMinutes: w.DurationMinutes,
		Description:     w.Description,
		State:           string(w.State),
		RemandComment:   w.RemandComment,
		Disputed:        w.Disputed,
		DisputeComment:  w.DisputeComment,
		CreatedAt:       w.CreatedAt.Format(time.RFC3339),
	}
	if !w.StartAt.IsZero() {
		dto.StartAt = w.StartAt.Format(time.RFC3339)
	}
	if !w.EndAt.IsZero() {
		dto.EndAt = w.EndAt.Format(time.RFC3339)
	}
	dto.ApprovedAt = formatTimePtr(w.ApprovedAt)
	dto.RemandedAt = formatTimePtr(w.RemandedAt)
	dto.DisputedAt = formatTimePtr(w.DisputedAt)
	return dto
}

func toClientInvoiceDTO(inv engine.ClientMonthlyInvoice) ClientInvoiceDTO {
	return ClientInvoiceDTO{
		ID:            inv.ID,
		ClientID:      string(inv.ClientID),
		TargetMonth:   inv.TargetMonth.String(),
		TotalAmount:   inv.TotalAmount.String(),
		WorkUnitCount: inv.WorkUnitCount,
		TotalMinutes:  inv.TotalMinutes,
		Status:        string(inv.Status),
		CreatedAt:     inv.CreatedAt.Format(time.RFC3339),
	}
}

func toSecretarySummaryDTO(sum engine.SecretaryMonthlySummary) SecretarySummaryDTO {
	return SecretarySummaryDTO{
		ID:            sum.ID,
		SecretaryID:   string(sum.SecretaryID),
		TargetMonth:   sum.TargetMonth.String(),
		TotalAmount:   sum.TotalAmount.String(),
		WorkUnitCount: sum.WorkUnitCount,
		TotalMinutes:  sum.TotalMinutes,
		Status:        string(sum.Status),
		FinalizedAt:   formatTimePtr(sum.FinalizedAt),
		CreatedAt:     sum.CreatedAt.Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
