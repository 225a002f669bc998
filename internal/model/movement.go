package model

import "time"

// Movement types.
const (
	MovementRegistration = "registration"
	MovementDelivery     = "delivery"
	MovementReturn       = "return"
	MovementTransfer     = "transfer"
	MovementMaintenance  = "maintenance"
	MovementRetirement   = "retirement"
	MovementCancellation = "cancellation"
	MovementReconcile    = "reconciliation"
)

// Movement is one append-only custody/location change of an equipment item.
type Movement struct {
	ID           uint64    `json:"id"`
	EquipmentID  uint64    `json:"equipment_id"`
	MovementType string    `json:"movement_type"`
	FromUser     *string   `json:"from_user"`
	ToUser       *string   `json:"to_user"`
	FromLocation *string   `json:"from_location"`
	ToLocation   *string   `json:"to_location"`
	TermID       *uint64   `json:"term_id"`
	PerformedBy  *uint64   `json:"performed_by"`
	Notes        string    `json:"notes"`
	MovementDate time.Time `json:"movement_date"`
}
