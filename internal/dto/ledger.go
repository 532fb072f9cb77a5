package dto

import (
	"time"

	"github.com/noah-isme/driving-school-ledger/internal/models"
	"github.com/noah-isme/driving-school-ledger/pkg/money"
)

// EnrollRequest registers a student and schedules the installments in one step.
type EnrollRequest struct {
	StudentID              string       `json:"student_id" validate:"required"`
	SchoolID               string       `json:"school_id" validate:"required"`
	CategoryID             string       `json:"category_id" validate:"required"`
	TotalCost              money.Money  `json:"total_cost"`
	DurationMonths         int          `json:"duration_months"`
	InstallmentCount       *int         `json:"installment_count,omitempty"`
	FirstInstallmentAmount *money.Money `json:"first_installment_amount,omitempty"`
	StartDate              string       `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ScheduleInstallmentsRequest schedules installments for an existing enrollment.
// TotalCost, when sent, must match the enrollment's cost.
type ScheduleInstallmentsRequest struct {
	TotalCost              *money.Money `json:"total_cost,omitempty"`
	InstallmentCount       *int         `json:"installment_count,omitempty"`
	FirstInstallmentAmount *money.Money `json:"first_installment_amount,omitempty"`
	StartDate              string       `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// EnrollmentResponse is returned after enrolling or scheduling.
type EnrollmentResponse struct {
	Enrollment   models.Enrollment    `json:"enrollment"`
	Installments []models.Installment `json:"installments"`
}

// ApplyPaymentRequest settles one installment. Amount is optional: when set,
// the arbitrary-amount path records that figure instead of the installment's.
type ApplyPaymentRequest struct {
	InstallmentID string       `json:"-"`
	EnrollmentID  string       `json:"enrollment_id,omitempty"`
	Method        string       `json:"method" validate:"required,max=32"`
	Notes         string       `json:"notes,omitempty" validate:"max=500"`
	PaidAt        *time.Time   `json:"paid_at,omitempty"`
	Amount        *money.Money `json:"amount,omitempty"`
}

// PaymentReceipt describes a completed settlement.
type PaymentReceipt struct {
	Payment        models.Payment           `json:"payment"`
	Installment    models.Installment       `json:"installment"`
	PreviousStatus models.InstallmentStatus `json:"previous_status"`
	Underpaid      bool                     `json:"underpaid,omitempty"`
}

// ReversalResult describes a removed payment and the installment state after it.
type ReversalResult struct {
	PaymentID      string                   `json:"payment_id"`
	InstallmentID  string                   `json:"installment_id"`
	EnrollmentID   string                   `json:"enrollment_id"`
	Amount         money.Money              `json:"amount"`
	PreviousStatus models.InstallmentStatus `json:"previous_status"`
	NewStatus      models.InstallmentStatus `json:"new_status"`
	ReversedBy     string                   `json:"reversed_by"`
	ReversedAt     time.Time                `json:"reversed_at"`
}
