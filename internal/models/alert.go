package models

import (
	"time"

	"gorm.io/gorm"
)

type AlertType string

const (
	AlertTypeDriverNoReady AlertType = "driver_no_ready"
)

// AdminAlert is an operational escalation raised by the readiness scheduler
// when a driver has not confirmed close to departure. Resolved by an admin
// action, normally the no-show flow.
type AdminAlert struct {
	gorm.Model
	Type       AlertType  `json:"type" gorm:"not null"`
	TripID     uint       `json:"tripId" gorm:"not null;index"`
	Trip       Trip       `json:"trip"`
	DriverID   uint       `json:"driverId" gorm:"not null;index"`
	Driver     User       `json:"driver"`
	Message    string     `json:"message" gorm:"not null"`
	IsResolved bool       `json:"isResolved" gorm:"not null;default:false;index"`
	ResolvedBy *uint      `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}
