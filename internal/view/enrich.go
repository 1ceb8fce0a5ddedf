// Package view builds the read models the list, detail and report
// surfaces render. Enrichment combines the sheet-sourced work order with
// its local execution aggregates and the derived status badge.
package view

import (
	"errors"
	"fmt"

	"github.com/mveloso/campo/internal/models"
	"github.com/mveloso/campo/internal/status"
	"gorm.io/gorm"
)

// Aggregates summarizes local execution state under one work order.
type Aggregates struct {
	CaixaTotal int               `json:"caixaTotal"`
	CaixaDone  int               `json:"caixaDone"`
	CaixaNOK   int               `json:"caixaNok"`
	LancaTotal int               `json:"lancaTotal"`
	LancaDone  int               `json:"lancaDone"`
	LaidLength float64           `json:"laidLength"`
	Execution  *models.Execution `json:"execution,omitempty"`
}

// EnrichedWorkOrder is the read model consumed by list/detail/report
// views.
type EnrichedWorkOrder struct {
	models.WorkOrder
	Badge      status.Badge `json:"badge"`
	Aggregates Aggregates   `json:"aggregates"`
}

// Enrich combines a work order with its aggregates into one read model.
// Pure; storage-backed callers use LoadAggregates first.
func Enrich(os models.WorkOrder, agg Aggregates) EnrichedWorkOrder {
	var exec *status.Execution
	if agg.Execution != nil {
		exec = &status.Execution{
			Done:  agg.Execution.Status == models.ExecutionDone,
			Notes: agg.Execution.Notes,
		}
	}
	return EnrichedWorkOrder{
		WorkOrder:  os,
		Badge:      status.Derive(os.Status, exec),
		Aggregates: agg,
	}
}

// LoadAggregates computes the execution aggregates for one work order.
func LoadAggregates(db *gorm.DB, osID string) (Aggregates, error) {
	var agg Aggregates

	var caixas []models.Caixa
	if err := db.Where("work_order_id = ?", osID).Find(&caixas).Error; err != nil {
		return agg, fmt.Errorf("view: load caixas for %s: %w", osID, err)
	}
	agg.CaixaTotal = len(caixas)
	for _, c := range caixas {
		switch c.Status {
		case models.UnitStatusOK:
			agg.CaixaDone++
		case models.UnitStatusNOK:
			agg.CaixaNOK++
		}
	}

	var lancas []models.Lanca
	if err := db.Where("work_order_id = ?", osID).Find(&lancas).Error; err != nil {
		return agg, fmt.Errorf("view: load lanças for %s: %w", osID, err)
	}
	agg.LancaTotal = len(lancas)
	for _, l := range lancas {
		if l.Status == models.UnitStatusOK {
			agg.LancaDone++
		}
		agg.LaidLength += l.LaidLength
	}

	var exec models.Execution
	err := db.Where("work_order_id = ?", osID).First(&exec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return agg, fmt.Errorf("view: load execution for %s: %w", osID, err)
	default:
		agg.Execution = &exec
	}
	return agg, nil
}

// List returns every work order enriched, ordered by entry date then id.
func List(db *gorm.DB) ([]EnrichedWorkOrder, error) {
	var orders []models.WorkOrder
	if err := db.Order("entry_date ASC, id ASC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("view: load work orders: %w", err)
	}
	out := make([]EnrichedWorkOrder, 0, len(orders))
	for _, os := range orders {
		agg, err := LoadAggregates(db, os.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Enrich(os, agg))
	}
	return out, nil
}

// Get returns one enriched work order by id.
func Get(db *gorm.DB, osID string) (EnrichedWorkOrder, error) {
	var os models.WorkOrder
	if err := db.Where("id = ?", osID).First(&os).Error; err != nil {
		return EnrichedWorkOrder{}, fmt.Errorf("view: load work order %s: %w", osID, err)
	}
	agg, err := LoadAggregates(db, osID)
	if err != nil {
		return EnrichedWorkOrder{}, err
	}
	return Enrich(os, agg), nil
}
