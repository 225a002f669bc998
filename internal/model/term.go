package model

import "time"

// Responsibility term statuses.
const (
	TermActive    = "active"
	TermReturned  = "returned"
	TermCancelled = "cancelled"
)

// Return destinations chosen by the technician receiving an item back.
const (
	DestinationAvailable   = "available"
	DestinationStorage     = "storage"
	DestinationMaintenance = "maintenance"
	DestinationDisposal    = "disposal"
)

// StorageLocation is where items returned with the storage destination go.
const StorageLocation = "storage"

// DestinationStatus maps a return destination to the equipment status it
// leaves the item in.
func DestinationStatus(dest string) (string, bool) {
	switch dest {
	case DestinationAvailable, DestinationStorage:
		return EquipmentInStock, true
	case DestinationMaintenance:
		return EquipmentMaintenance, true
	case DestinationDisposal:
		return EquipmentRetired, true
	}
	return "", false
}

// ResponsibilityTerm records who is accountable for an equipment item
// between delivery and return.  At most one term per equipment is active.
type ResponsibilityTerm struct {
	ID                    uint64          `json:"id"`
	EquipmentID           uint64          `json:"equipment_id"`
	ResponsibleUserID     *uint64         `json:"responsible_user_id"`
	ResponsibleName       string          `json:"responsible_name"`
	ResponsibleCPF        string          `json:"responsible_cpf"`
	ResponsiblePosition   string          `json:"responsible_position"`
	ResponsibleDepartment string          `json:"responsible_department"`
	DeliveryLocation      string          `json:"delivery_location"`
	IssuedDate            time.Time       `json:"issued_date"`
	IssuedBy              uint64          `json:"issued_by"`
	ReturnedDate          *time.Time      `json:"returned_date,omitempty"`
	ReturnedBy            *uint64         `json:"returned_by,omitempty"`
	ReturnDestination     *string         `json:"return_destination,omitempty"`
	ReturnChecklist       map[string]bool `json:"return_checklist,omitempty"`
	ReturnNotes           *string         `json:"return_notes,omitempty"`
	Status                string          `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`

	// Joined fields (not always populated).
	EquipmentCode string `json:"equipment_code,omitempty"`
}
