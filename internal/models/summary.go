package models

import (
	"time"

	"github.com/noah-isme/driving-school-ledger/pkg/money"
)

// FinancialStatus classifies an enrollment's (or aggregate's) standing.
type FinancialStatus string

// Financial statuses.
const (
	FinancialStatusSettled FinancialStatus = "SETTLED"
	FinancialStatusOverdue FinancialStatus = "OVERDUE"
	FinancialStatusOnTrack FinancialStatus = "ON_TRACK"
)

// StatusCounts tallies installments per status. Overdue overlaps Pending and
// PartiallyPaid since it is derived from the due date.
type StatusCounts struct {
	Pending       int `json:"pending"`
	PartiallyPaid int `json:"partially_paid"`
	Paid          int `json:"paid"`
	Overdue       int `json:"overdue"`
}

// Add accumulates o into c.
func (c StatusCounts) Add(o StatusCounts) StatusCounts {
	return StatusCounts{
		Pending:       c.Pending + o.Pending,
		PartiallyPaid: c.PartiallyPaid + o.PartiallyPaid,
		Paid:          c.Paid + o.Paid,
		Overdue:       c.Overdue + o.Overdue,
	}
}

// FinancialSummary is recomputed on every read from installments and payments.
type FinancialSummary struct {
	EnrollmentID     string          `json:"enrollment_id,omitempty"`
	StudentID        string          `json:"student_id,omitempty"`
	SchoolID         string          `json:"school_id,omitempty"`
	TotalDue         money.Money     `json:"total_due"`
	TotalPaid        money.Money     `json:"total_paid"`
	Pending          money.Money     `json:"pending"`
	OverdueAmount    money.Money     `json:"overdue_amount"`
	PercentPaid      float64         `json:"percent_paid"`
	InstallmentCount int             `json:"installment_count"`
	Counts           StatusCounts    `json:"counts"`
	FinancialStatus  FinancialStatus `json:"financial_status"`
}

// StudentFinancialSummary folds every enrollment owned by a student.
type StudentFinancialSummary struct {
	StudentID          string             `json:"student_id"`
	Totals             FinancialSummary   `json:"totals"`
	Enrollments        []FinancialSummary `json:"enrollments"`
	NextDueInstallment *Installment       `json:"next_due_installment,omitempty"`
}

// SchoolReportFilter narrows the installment and payment listings of a school
// report. Zero values mean "no filter".
type SchoolReportFilter struct {
	From           *time.Time        `json:"from,omitempty"`
	To             *time.Time        `json:"to,omitempty"`
	Status         InstallmentStatus `json:"status,omitempty"`
	MinDaysOverdue int               `json:"min_days_overdue,omitempty"`
	Method         string            `json:"method,omitempty"`
}

// ReportInstallment is an installment row enriched for school reporting.
type ReportInstallment struct {
	Installment
	StudentID   string `json:"student_id"`
	Overdue     bool   `json:"overdue"`
	DaysOverdue int    `json:"days_overdue"`
}

// ReportPayment is a payment row enriched for school reporting.
type ReportPayment struct {
	Payment
	StudentID string `json:"student_id"`
}

// DailyPaymentBucket sums payments per calendar day.
type DailyPaymentBucket struct {
	Date   string      `json:"date"`
	Count  int         `json:"count"`
	Amount money.Money `json:"amount"`
}

// MethodPaymentBucket sums payments per method.
type MethodPaymentBucket struct {
	Method string      `json:"method"`
	Count  int         `json:"count"`
	Amount money.Money `json:"amount"`
}

// SchoolReport folds every enrollment of a school. Totals and Enrollments
// are unfiltered; Installments, Payments and the buckets honour Filter.
type SchoolReport struct {
	SchoolID          string                `json:"school_id"`
	AsOf              string                `json:"as_of"`
	Filter            SchoolReportFilter    `json:"filter"`
	Totals            FinancialSummary      `json:"totals"`
	EnrollmentCount   int                   `json:"enrollment_count"`
	Enrollments       []FinancialSummary    `json:"enrollments"`
	Installments      []ReportInstallment   `json:"installments"`
	Payments          []ReportPayment       `json:"payments"`
	CollectedInPeriod money.Money           `json:"collected_in_period"`
	DailyPayments     []DailyPaymentBucket  `json:"daily_payments"`
	MethodPayments    []MethodPaymentBucket `json:"method_payments"`
}
