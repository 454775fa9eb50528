package appointments

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Appointment is a scheduled consultation between a user and a doctor.
type Appointment struct {
	ID          string    `json:"id"`
	DoctorID    string    `json:"doctorId"`
	UserID      string    `json:"userId"`
	ScheduledAt time.Time `json:"date"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CanTransition reports whether an appointment in state from may move to
// state to. Cancelled is terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled
	}
	return false
}

// ValidateTransition returns a descriptive error when the requested status
// change is not allowed by the lifecycle rules.
func ValidateTransition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("appointments: unknown status %q", to)
	}
	if from == to {
		return fmt.Errorf("appointments: already %s", from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("appointments: cannot move %s appointment to %s", from, to)
	}
	return nil
}
