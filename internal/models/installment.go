package models

import (
	"time"

	"github.com/noah-isme/driving-school-ledger/pkg/money"
)

// InstallmentStatus is the only mutable column of an installment.
type InstallmentStatus string

// Installment statuses. PartiallyPaid is recognised but never produced by the
// ledger; Overdue is a derived filter value and is never stored.
const (
	InstallmentStatusPending       InstallmentStatus = "PENDING"
	InstallmentStatusPartiallyPaid InstallmentStatus = "PARTIALLY_PAID"
	InstallmentStatusPaid          InstallmentStatus = "PAID"
	InstallmentStatusOverdue       InstallmentStatus = "OVERDUE"
)

// Installment count bounds. Out-of-range requests are clamped.
const (
	MinInstallments = 1
	MaxInstallments = 3
)

// Installment is one scheduled portion of an enrollment's total cost.
type Installment struct {
	ID           string            `db:"id" json:"id"`
	EnrollmentID string            `db:"enrollment_id" json:"enrollment_id"`
	Sequence     int               `db:"sequence" json:"sequence"`
	Amount       money.Money       `db:"amount" json:"amount"`
	DueDate      time.Time         `db:"due_date" json:"due_date"`
	Status       InstallmentStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// IsOverdue reports whether the installment is unpaid past its due day.
func (i Installment) IsOverdue(today time.Time) bool {
	return i.Status != InstallmentStatusPaid && DateOf(i.DueDate).Before(DateOf(today))
}

// DaysOverdue counts whole days past due, or 0 when not overdue.
func (i Installment) DaysOverdue(today time.Time) int {
	if !i.IsOverdue(today) {
		return 0
	}
	return int(DateOf(today).Sub(DateOf(i.DueDate)).Hours() / 24)
}

// ClampInstallmentCount forces a count into [MinInstallments, MaxInstallments].
func ClampInstallmentCount(count int) int {
	if count < MinInstallments {
		return MinInstallments
	}
	if count > MaxInstallments {
		return MaxInstallments
	}
	return count
}

// DateOf returns the calendar day of t (as seen in t's own location) as a
// UTC midnight, so days from different zones compare by calendar only.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
