package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Date and time layouts used on the wire.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a booked visit.
type Appointment struct {
	ID         uuid.UUID         `json:"id"`
	DoctorName string            `json:"doctor_name"`
	Department string            `json:"department"`
	Date       string            `json:"date"`
	Time       string            `json:"time"`
	Status     AppointmentStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ScheduledAt combines Date and Time in loc. The backend sends times either as
// HH:MM or HH:MM:SS.
func (a Appointment) ScheduledAt(loc *time.Location) (time.Time, error) {
	clock := a.Time
	if len(clock) > len(TimeLayout) {
		clock = clock[:len(TimeLayout)]
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, a.Date+" "+clock, loc)
}

// Upcoming reports whether the appointment is still active and falls on or
// after the calendar day of now.
func (a Appointment) Upcoming(now time.Time) bool {
	if a.Status == AppointmentCancelled {
		return false
	}
	d, err := time.ParseInLocation(DateLayout, a.Date, now.Location())
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !d.Before(today)
}

// NewAppointment is the body of POST /appointments/.
type NewAppointment struct {
	DoctorName string `json:"doctor_name"`
	Department string `json:"department"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

// Validate checks the booking form before it is sent. Returns a map of field
// names to error messages, or nil if everything is valid.
func (n NewAppointment) Validate() map[string]string {
	errs := make(map[string]string)

	if strings.TrimSpace(n.DoctorName) == "" {
		errs["doctor_name"] = requiredReason
	} else if len(n.DoctorName) > 100 {
		errs["doctor_name"] = "too long (max 100)"
	}

	if strings.TrimSpace(n.Department) == "" {
		errs["department"] = requiredReason
	} else if len(n.Department) > 100 {
		errs["department"] = "too long (max 100)"
	}

	switch {
	case n.Date == "":
		errs["date"] = requiredReason
	default:
		if _, err := ParseDate(n.Date); err != nil {
			errs["date"] = "must be YYYY-MM-DD"
		}
	}

	switch {
	case n.Time == "":
		errs["time"] = requiredReason
	default:
		if _, err := time.Parse(TimeLayout, n.Time); err != nil {
			errs["time"] = "must be HH:MM"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
