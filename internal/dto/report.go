package dto

import (
	"github.com/noah-isme/driving-school-ledger/internal/models"
	"github.com/noah-isme/driving-school-ledger/pkg/money"
)

// Export formats accepted by the school report export endpoint.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

// Export datasets.
const (
	ReportDatasetInstallments = "installments"
	ReportDatasetPayments     = "payments"
)

// SchoolReportQuery captures GET /schools/:id/report query parameters.
type SchoolReportQuery struct {
	SchoolID       string `form:"-" validate:"required"`
	From           string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To             string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Status         string `form:"status" validate:"omitempty,oneof=PENDING PARTIALLY_PAID PAID OVERDUE"`
	MinDaysOverdue int    `form:"min_days_overdue" validate:"min=0"`
	Method         string `form:"method" validate:"omitempty,max=32"`
	Format         string `form:"format" validate:"omitempty,oneof=csv pdf xlsx"`
	Dataset        string `form:"dataset" validate:"omitempty,oneof=installments payments"`
}

// SchoolReportView is the sorted, capped rendering of a school report.
type SchoolReportView struct {
	SchoolID          string                       `json:"school_id"`
	AsOf              string                       `json:"as_of"`
	Filter            models.SchoolReportFilter    `json:"filter"`
	Totals            models.FinancialSummary      `json:"totals"`
	EnrollmentCount   int                          `json:"enrollment_count"`
	Enrollments       []models.FinancialSummary    `json:"enrollments"`
	Installments      []models.ReportInstallment   `json:"installments"`
	Payments          []models.ReportPayment       `json:"payments"`
	CollectedInPeriod money.Money                  `json:"collected_in_period"`
	DailyPayments     []models.DailyPaymentBucket  `json:"daily_payments"`
	MethodPayments    []models.MethodPaymentBucket `json:"method_payments"`
	Truncated         bool                         `json:"truncated,omitempty"`
}

// StudentStatement is the printable account view of one student.
type StudentStatement struct {
	StudentID  string                         `json:"student_id"`
	AsOf       string                         `json:"as_of"`
	Summary    models.StudentFinancialSummary `json:"summary"`
	Upcoming   []models.Installment           `json:"upcoming"`
	Overdue    []models.Installment           `json:"overdue"`
	History    []models.Payment               `json:"history"`
	Categories []string                       `json:"categories"`
}

// ExportFile is a rendered report ready to be streamed as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}
