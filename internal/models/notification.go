package models

import "time"

// Notification types created by this subsystem. Other write paths in the
// product create additional types through the same table.
const (
	NotificationNovaOS = "nova_os"
)

// Notification is one event fact targeted at a single crew. Bookkeeping
// records (created pre-read and pre-archived) exist only to mark a work
// order as already notified and are never shown to anyone.
type Notification struct {
	ID          string `gorm:"primaryKey;size:36"`
	Type        string `gorm:"size:32;index"`
	Title       string `gorm:"size:128"`
	Message     string `gorm:"type:text"`
	CrewID      string `gorm:"size:64;index"`
	WorkOrderID string `gorm:"size:64;index"`
	Read        bool   `gorm:"column:is_read;default:false"` // "read" is reserved in MySQL
	Archived    bool   `gorm:"default:false;index"`
	CreatedAt   time.Time
}
