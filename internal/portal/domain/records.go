package domain

import "time"

// Prescription is issued by a doctor and read-only for the patient.
type Prescription struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	IssuedAt time.Time `json:"issued_at"`
}

// MedicalRecord is an entry in the patient's file. File is a URL to an
// attachment, nil when the record has none.
type MedicalRecord struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes"`
	File      *string   `json:"file"`
	CreatedAt time.Time `json:"created_at"`
}

// LastVisit is the most recent completed appointment. A zero value means the
// patient has no visits on file.
type LastVisit struct {
	Date       string `json:"date,omitempty"`
	DoctorName string `json:"doctor_name,omitempty"`
	Department string `json:"department,omitempty"`
}

// IsZero reports whether no visit is on file.
func (v LastVisit) IsZero() bool {
	return v.Date == ""
}

type RecordCount struct {
	Count int `json:"count"`
}

// Dashboard aggregates the data shown on the portal's landing page.
type Dashboard struct {
	Profile     Patient       `json:"profile"`
	Upcoming    []Appointment `json:"upcoming"`
	LastVisit   LastVisit     `json:"last_visit"`
	RecordCount int           `json:"record_count"`
}
