package models

import "time"

// Work-order lifecycle statuses as they appear in the spreadsheet. The
// status column is free-form text; these are the values the product
// recognizes. Matching is always prefix/contains based because the sheet
// carries inconsistent casing and accents.
const (
	OSStatusEmExecucao = "Em execução"
	OSStatusConcluido  = "CONCLUÍDO"
	OSStatusCancelado  = "CANCELADO"
	OSStatusFechado    = "FECHADO"
)

// WorkOrder is one externally-assigned unit of field work ("OS"). The
// spreadsheet is the system of record for every column here; the importer
// is the only writer, except for the automatic promotion to "Em execução"
// when a caixa is worked outside the spreadsheet.
type WorkOrder struct {
	ID             string `gorm:"primaryKey;size:64"`
	Code           string `gorm:"size:64;index"`
	Status         string `gorm:"size:128"`
	Location       string `gorm:"size:128"`
	Region         string `gorm:"size:64"`
	EntryDate      string `gorm:"size:16"`
	ScheduledDate  string `gorm:"size:16"`
	CompletionDate string `gorm:"size:16"`
	Value          float64
	PlannedCaixas  int
	PlannedLancas  int
	Observations   string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Execution is the local close-out record a technician creates for a
// work order. It lives outside the spreadsheet; the importer never
// touches it. The closure sub-classification ("Status: X") is embedded
// in Notes at close time.
type Execution struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	WorkOrderID string `gorm:"size:64;uniqueIndex"`
	CrewID      string `gorm:"size:64;index"`
	Status      string `gorm:"size:16;default:OPEN"`
	Notes       string `gorm:"type:text"`
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Execution statuses.
const (
	ExecutionOpen = "OPEN"
	ExecutionDone = "DONE"
)
