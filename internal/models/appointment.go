package models

import (
	"errors"
	"strings"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// ErrInvalidStatus is returned for statuses outside the closed set.
var ErrInvalidStatus = errors.New("invalid appointment status")

// ParseStatus maps an optional status to a valid one. Empty means pending.
func ParseStatus(s string) (AppointmentStatus, error) {
	switch status := AppointmentStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case "":
		return StatusPending, nil
	case StatusPending, StatusConfirmed, StatusCancelled:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Appointment represents a booked slot with a doctor.
//
// Doctor is populated only when listing and is never written to the store.
type Appointment struct {
	ID        ID                `bson:"_id,omitempty" json:"_id"`
	DoctorID  ID                `bson:"doctorId" json:"doctorId"`
	UserID    ID                `bson:"userId" json:"userId"`
	Username  string            `bson:"username,omitempty" json:"username,omitempty"`
	Date      string            `bson:"date" json:"date"`
	Time      string            `bson:"time" json:"time"`
	Status    AppointmentStatus `bson:"status" json:"status"`
	CreatedAt time.Time         `bson:"createdAt" json:"createdAt"`

	Doctor *DoctorSummary `bson:"doctor,omitempty" json:"doctor,omitempty"`
}
