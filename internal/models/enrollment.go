package models

import (
	"time"

	"github.com/noah-isme/driving-school-ledger/pkg/money"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Contract duration bounds in months. Out-of-range values are clamped.
const (
	MinContractMonths = 1
	MaxContractMonths = 6
)

// Enrollment is a student's registration into a tuition category at a school.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	SchoolID       string           `db:"school_id" json:"school_id"`
	CategoryID     string           `db:"category_id" json:"category_id"`
	TotalCost      money.Money      `db:"total_cost" json:"total_cost"`
	StartDate      time.Time        `db:"start_date" json:"start_date"`
	DurationMonths int              `db:"duration_months" json:"duration_months"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	CreatedBy      string           `db:"created_by" json:"created_by"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// EnrollmentLedger bundles an enrollment with its installments and payments.
type EnrollmentLedger struct {
	Enrollment   Enrollment    `json:"enrollment"`
	Installments []Installment `json:"installments"`
	Payments     []Payment     `json:"payments"`
}

// ClampContractMonths forces a duration into [MinContractMonths, MaxContractMonths].
func ClampContractMonths(months int) int {
	if months < MinContractMonths {
		return MinContractMonths
	}
	if months > MaxContractMonths {
		return MaxContractMonths
	}
	return months
}
