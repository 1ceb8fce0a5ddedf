package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Crew roles.
const (
	RoleAdmin   = "admin"
	RoleTecnico = "tecnico"
)

// Crew is the directory record for a technician or crew. The importer
// creates missing entries (with a generated login and a default
// credential) and refreshes descriptive fields on existing entries;
// Login, PasswordHash and preference fields are owned by the identity
// subsystem and never overwritten by an import.
type Crew struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"size:128"`
	Login         string `gorm:"size:64;uniqueIndex"`
	PasswordHash  string `gorm:"size:128"`
	Role          string `gorm:"size:16;default:tecnico;index"`
	Region        string `gorm:"size:64"`
	Phone         string `gorm:"size:32"`
	NotifyByEmail bool   `gorm:"default:true"`
	Active        bool   `gorm:"default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAdmin reports whether the crew has the admin role.
func (c Crew) IsAdmin() bool { return c.Role == RoleAdmin }

// HashPassword returns the stored form of a credential.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
