package models

import (
	"time"

	"github.com/noah-isme/driving-school-ledger/pkg/money"
)

// Payment is a recorded settlement against one installment.
type Payment struct {
	ID            string      `db:"id" json:"id"`
	InstallmentID string      `db:"installment_id" json:"installment_id"`
	EnrollmentID  string      `db:"enrollment_id" json:"enrollment_id"`
	Amount        money.Money `db:"amount" json:"amount"`
	Method        string      `db:"method" json:"method"`
	PaidAt        time.Time   `db:"paid_at" json:"paid_at"`
	Notes         string      `db:"notes" json:"notes,omitempty"`
	RecordedBy    string      `db:"recorded_by" json:"recorded_by"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

// Common payment methods. The column is free text; these are the values the
// back office offers by default.
const (
	PaymentMethodCash         = "cash"
	PaymentMethodBankTransfer = "bank-transfer"
	PaymentMethodMobileMoney  = "mobile-money"
	PaymentMethodCard         = "card"
)

// Actor identifies who performs a ledger operation.
type Actor struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}
