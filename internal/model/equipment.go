package model

import (
	"regexp"
	"time"
)

// Equipment statuses.  in_use is only reachable through a delivery.
const (
	EquipmentInStock     = "in_stock"
	EquipmentInUse       = "in_use"
	EquipmentMaintenance = "maintenance"
	EquipmentRetired     = "retired"
)

var equipmentStatuses = []string{EquipmentInStock, EquipmentInUse, EquipmentMaintenance, EquipmentRetired}

func ValidEquipmentStatus(s string) bool { return contains(equipmentStatuses, s) }

// EquipmentStatuses returns the equipment status vocabulary.
func EquipmentStatuses() []string { return append([]string(nil), equipmentStatuses...) }

var equipmentCodeRe = regexp.MustCompile(`^[A-Z]{2}-\d{3,}$`)

// ValidEquipmentCode reports whether code has the form XX-000 (two
// upper-case letters, a dash and at least three digits).
func ValidEquipmentCode(code string) bool { return equipmentCodeRe.MatchString(code) }

// Equipment is an inventory item.  The Current* fields mirror the active
// responsibility term while the item is in use.
type Equipment struct {
	ID                     uint64     `json:"id"`
	InternalCode           string     `json:"internal_code"`
	Category               string     `json:"category"`
	Brand                  string     `json:"brand"`
	Model                  string     `json:"model"`
	SerialNumber           string     `json:"serial_number"`
	CurrentStatus          string     `json:"current_status"`
	CurrentResponsibleID   *uint64    `json:"current_responsible_id"`
	CurrentResponsibleName *string    `json:"current_responsible_name"`
	CurrentLocation        string     `json:"current_location"`
	PurchaseDate           *time.Time `json:"purchase_date,omitempty"`
	PurchaseValue          *float64   `json:"purchase_value,omitempty"`
	UsefulLifeYears        *int       `json:"useful_life_years,omitempty"`
	Notes                  string     `json:"notes"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`

	// CurrentValue is the depreciated value, filled by the service layer.
	CurrentValue *float64 `json:"current_value,omitempty"`
}
