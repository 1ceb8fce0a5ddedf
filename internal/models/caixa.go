package models

import "time"

// Execution statuses for caixas and lanças. Empty string means the unit
// was never touched; "Pendente" is the sheet's explicit pending sentinel
// and is treated the same as blank by the merge rules.
const (
	UnitStatusPendente = "Pendente"
	UnitStatusOK       = "OK"
	UnitStatusNOK      = "NOK"
)

// UnitStatusMarked reports whether a caixa/lança status was set by a
// technician in the field (done or explicit not-done).
func UnitStatusMarked(status string) bool {
	return status == UnitStatusOK || status == UnitStatusNOK
}

// Caixa is one physical unit of work (a junction box) within a work
// order. Descriptive columns are refreshed from the spreadsheet on every
// import; the field-collected columns (Status, CrewID, CrewName, Note,
// MeasuredValue, CompletionDate) belong to the technician once marked.
type Caixa struct {
	ID             string `gorm:"primaryKey;size:96"`
	WorkOrderID    string `gorm:"size:64;index"`
	Label          string `gorm:"size:128"`
	Address        string `gorm:"size:256"`
	Coordinates    string `gorm:"size:64"`
	BoxType        string `gorm:"size:64"`
	Status         string `gorm:"size:16"`
	CrewID         string `gorm:"size:64;index"`
	CrewName       string `gorm:"size:128"`
	Note           string `gorm:"type:text"`
	MeasuredValue  float64
	CompletionDate string `gorm:"size:16"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Lanca is one cable-run task between two points within a work order.
// Same ownership split as Caixa: descriptive columns are sheet-owned,
// execution columns are technician-owned once marked.
type Lanca struct {
	ID             string `gorm:"primaryKey;size:96"`
	WorkOrderID    string `gorm:"size:64;index"`
	FromPoint      string `gorm:"size:128"`
	ToPoint        string `gorm:"size:128"`
	CableType      string `gorm:"size:64"`
	PlannedLength  float64
	LaidLength     float64
	Status         string `gorm:"size:16"`
	CrewID         string `gorm:"size:64;index"`
	CrewName       string `gorm:"size:128"`
	Note           string `gorm:"type:text"`
	CompletionDate string `gorm:"size:16"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
