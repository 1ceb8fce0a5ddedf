// Package notify turns newly observed work orders into a bounded set of
// per-crew notification records, and prunes old read/archived ones.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mveloso/campo/internal/models"
	"github.com/mveloso/campo/internal/notify/bridge"
	"gorm.io/gorm"
)

// Batching policy defaults: up to batchThreshold new orders every crew
// gets per-item notifications; above it only admins do, capped at
// adminCap, with one aggregate for everyone else.
const (
	DefaultBatchThreshold = 5
	DefaultAdminCap       = 10
)

// Notifier runs the new-work-order fan-out.
type Notifier struct {
	BatchThreshold int
	AdminCap       int
	// Senders optionally mirror a one-line summary of each fan-out to
	// external channels (Slack/Discord). Failures are logged, never
	// propagated.
	Senders []bridge.Sender
}

// New returns a Notifier with the default batching policy.
func New() *Notifier {
	return &Notifier{BatchThreshold: DefaultBatchThreshold, AdminCap: DefaultAdminCap}
}

// FanOutNewWorkOrders finds work orders never notified before and emits
// notification records per the batching policy. After one call every
// work-order id that existed at call time is recorded as notified, so no
// id is notified twice across runs.
func (n *Notifier) FanOutNewWorkOrders(db *gorm.DB) error {
	threshold := n.BatchThreshold
	if threshold <= 0 {
		threshold = DefaultBatchThreshold
	}
	adminCap := n.AdminCap
	if adminCap <= 0 {
		adminCap = DefaultAdminCap
	}

	newOrders, err := n.findNew(db)
	if err != nil {
		return err
	}
	if len(newOrders) == 0 {
		return nil
	}

	var crews []models.Crew
	if err := db.Where("active = ?", true).Order("id ASC").Find(&crews).Error; err != nil {
		return fmt.Errorf("notify: load crews: %w", err)
	}
	if len(crews) == 0 {
		// Nobody to alert yet, but the ids still get recorded so they
		// are not re-announced as new once the first crew appears.
		for _, os := range newOrders {
			rec := itemNotification(os, "")
			rec.Read = true
			rec.Archived = true
			if err := db.Create(&rec).Error; err != nil {
				return fmt.Errorf("notify: create notification for OS %s: %w", rec.WorkOrderID, err)
			}
		}
		return nil
	}

	var admins, others []models.Crew
	for _, c := range crews {
		if c.IsAdmin() {
			admins = append(admins, c)
		} else {
			others = append(others, c)
		}
	}

	var records []models.Notification
	if len(newOrders) <= threshold {
		for _, os := range newOrders {
			for _, c := range crews {
				records = append(records, itemNotification(os, c.ID))
			}
		}
	} else {
		for i, os := range newOrders {
			if i >= adminCap {
				break
			}
			for _, a := range admins {
				records = append(records, itemNotification(os, a.ID))
			}
		}
		aggregate := fmt.Sprintf("%d novas OS disponíveis", len(newOrders))
		for _, c := range others {
			records = append(records, models.Notification{
				ID:      uuid.NewString(),
				Type:    models.NotificationNovaOS,
				Title:   "Novas OS disponíveis",
				Message: aggregate,
				CrewID:  c.ID,
			})
		}
		// The aggregate carries no per-item reference, and the admin cap
		// leaves a tail unrecorded. Bookkeeping records (pre-read,
		// pre-archived, one per remaining id) mark them as notified
		// without alerting anyone.
		bookkeeper := crews[0].ID
		if len(admins) > 0 {
			bookkeeper = admins[0].ID
		}
		start := adminCap
		if len(admins) == 0 {
			start = 0
		}
		if start > len(newOrders) {
			start = len(newOrders)
		}
		for _, os := range newOrders[start:] {
			rec := itemNotification(os, bookkeeper)
			rec.Read = true
			rec.Archived = true
			records = append(records, rec)
		}
	}

	for i := range records {
		if err := db.Create(&records[i]).Error; err != nil {
			return fmt.Errorf("notify: create notification for OS %s: %w", records[i].WorkOrderID, err)
		}
	}

	n.mirror(fmt.Sprintf("Campo: %d nova(s) OS importada(s)", len(newOrders)))
	return nil
}

// findNew returns work orders with no "nova_os" notification on record,
// ordered by id for deterministic batching.
func (n *Notifier) findNew(db *gorm.DB) ([]models.WorkOrder, error) {
	var notified []string
	err := db.Model(&models.Notification{}).
		Where("type = ? AND work_order_id != ?", models.NotificationNovaOS, "").
		Distinct("work_order_id").
		Pluck("work_order_id", &notified).Error
	if err != nil {
		return nil, fmt.Errorf("notify: load notified ids: %w", err)
	}

	q := db.Model(&models.WorkOrder{}).Order("id ASC")
	if len(notified) > 0 {
		q = q.Where("id NOT IN ?", notified)
	}
	var orders []models.WorkOrder
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("notify: load work orders: %w", err)
	}
	return orders, nil
}

func itemNotification(os models.WorkOrder, crewID string) models.Notification {
	return models.Notification{
		ID:          uuid.NewString(),
		Type:        models.NotificationNovaOS,
		Title:       "Nova OS disponível",
		Message:     fmt.Sprintf("OS %s — %s, programada para %s", os.Code, os.Region, os.ScheduledDate),
		CrewID:      crewID,
		WorkOrderID: os.ID,
	}
}

// mirror posts a one-line summary to every configured external sender.
func (n *Notifier) mirror(text string) {
	for _, s := range n.Senders {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.Send(ctx, text); err != nil {
			log.Printf("notify: mirror via %s: %v", s.Name(), err)
		}
		cancel()
	}
}

// CleanupOld deletes read or archived notifications older than the
// retention horizon.
func CleanupOld(db *gorm.DB, retentionDays int) error {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	err := db.Where("created_at < ? AND (is_read = ? OR archived = ?)", cutoff, true, true).
		Delete(&models.Notification{}).Error
	if err != nil {
		return fmt.Errorf("notify: cleanup: %w", err)
	}
	return nil
}
