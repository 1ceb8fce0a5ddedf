// Package reconcile imports the external spreadsheet into durable
// storage: row-level upsert with conflict-preserving merge rules,
// per-row change detection, status promotion and notification
// post-steps.
package reconcile

import (
	"github.com/mveloso/campo/internal/models"
)

// staleIncoming reports whether the incoming status cell must be treated
// as stale: the technician already marked the unit and the sheet carries
// blank or the default pending sentinel.
func staleIncoming(existingStatus, incomingStatus string) bool {
	return models.UnitStatusMarked(existingStatus) &&
		(incomingStatus == "" || incomingStatus == models.UnitStatusPendente)
}

// MergeCaixa applies the caixa merge rule: field-collected execution
// state wins over a stale or blank spreadsheet cell; descriptive fields
// always refresh from the sheet.
func MergeCaixa(existing, incoming models.Caixa) models.Caixa {
	out := incoming
	out.ID = existing.ID
	out.CreatedAt = existing.CreatedAt
	if staleIncoming(existing.Status, incoming.Status) {
		out.Status = existing.Status
		out.CrewID = existing.CrewID
		out.CrewName = existing.CrewName
		out.Note = existing.Note
		out.MeasuredValue = existing.MeasuredValue
		out.CompletionDate = existing.CompletionDate
	}
	return out
}

// MergeLanca applies the same preserve-on-conflict rule for cable
// launches, keeping the crew-recorded laid length alongside the other
// execution fields.
func MergeLanca(existing, incoming models.Lanca) models.Lanca {
	out := incoming
	out.ID = existing.ID
	out.CreatedAt = existing.CreatedAt
	if staleIncoming(existing.Status, incoming.Status) {
		out.Status = existing.Status
		out.CrewID = existing.CrewID
		out.CrewName = existing.CrewName
		out.Note = existing.Note
		out.LaidLength = existing.LaidLength
		out.CompletionDate = existing.CompletionDate
	}
	return out
}

// MergeWorkOrder: the spreadsheet is authoritative for every work-order
// field; technicians close out through the execution record, never by
// editing the row.
func MergeWorkOrder(existing, incoming models.WorkOrder) models.WorkOrder {
	out := incoming
	out.ID = existing.ID
	out.CreatedAt = existing.CreatedAt
	return out
}

// MergeCrew refreshes descriptive fields only. Login, credential and
// preference fields are owned by the identity subsystem and pass through
// untouched.
func MergeCrew(existing, incoming models.Crew) models.Crew {
	out := existing
	out.Name = incoming.Name
	out.Role = incoming.Role
	out.Region = incoming.Region
	out.Phone = incoming.Phone
	return out
}

// Changed* compare the fields a write would touch, so unchanged rows
// issue no write and UpdatedAt keeps meaning "a human or the sheet
// actually changed this".

func workOrderChanged(a, b models.WorkOrder) bool {
	return a.Code != b.Code ||
		a.Status != b.Status ||
		a.Location != b.Location ||
		a.Region != b.Region ||
		a.EntryDate != b.EntryDate ||
		a.ScheduledDate != b.ScheduledDate ||
		a.CompletionDate != b.CompletionDate ||
		a.Value != b.Value ||
		a.PlannedCaixas != b.PlannedCaixas ||
		a.PlannedLancas != b.PlannedLancas ||
		a.Observations != b.Observations
}

func caixaChanged(a, b models.Caixa) bool {
	return a.WorkOrderID != b.WorkOrderID ||
		a.Label != b.Label ||
		a.Address != b.Address ||
		a.Coordinates != b.Coordinates ||
		a.BoxType != b.BoxType ||
		a.Status != b.Status ||
		a.CrewID != b.CrewID ||
		a.CrewName != b.CrewName ||
		a.Note != b.Note ||
		a.MeasuredValue != b.MeasuredValue ||
		a.CompletionDate != b.CompletionDate
}

func lancaChanged(a, b models.Lanca) bool {
	return a.WorkOrderID != b.WorkOrderID ||
		a.FromPoint != b.FromPoint ||
		a.ToPoint != b.ToPoint ||
		a.CableType != b.CableType ||
		a.PlannedLength != b.PlannedLength ||
		a.LaidLength != b.LaidLength ||
		a.Status != b.Status ||
		a.CrewID != b.CrewID ||
		a.CrewName != b.CrewName ||
		a.Note != b.Note ||
		a.CompletionDate != b.CompletionDate
}

func crewChanged(a, b models.Crew) bool {
	return a.Name != b.Name ||
		a.Role != b.Role ||
		a.Region != b.Region ||
		a.Phone != b.Phone
}
