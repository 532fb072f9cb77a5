package service

import (
	"sort"
	"strconv"
	"time"

	"github.com/noah-isme/driving-school-ledger/internal/dto"
	"github.com/noah-isme/driving-school-ledger/internal/models"
	"github.com/noah-isme/driving-school-ledger/pkg/export"
)

// ReportViewBuilder sorts, caps and flattens aggregator output. It holds no
// business rules.
type ReportViewBuilder struct {
	maxRows int
}

// NewReportViewBuilder constructs a builder; maxRows <= 0 disables the cap.
func NewReportViewBuilder(maxRows int) *ReportViewBuilder {
	return &ReportViewBuilder{maxRows: maxRows}
}

// SchoolView orders installments by due date ascending and payments by
// payment date descending, then applies the row cap.
func (b *ReportViewBuilder) SchoolView(report models.SchoolReport) dto.SchoolReportView {
	installments := append([]models.ReportInstallment(nil), report.Installments...)
	sort.SliceStable(installments, func(i, j int) bool {
		return dueBefore(installments[i].Installment, installments[j].Installment)
	})
	payments := append([]models.ReportPayment(nil), report.Payments...)
	sort.SliceStable(payments, func(i, j int) bool {
		return paidAfter(payments[i].Payment, payments[j].Payment)
	})

	view := dto.SchoolReportView{
		SchoolID:          report.SchoolID,
		AsOf:              report.AsOf,
		Filter:            report.Filter,
		Totals:            report.Totals,
		EnrollmentCount:   report.EnrollmentCount,
		Enrollments:       report.Enrollments,
		CollectedInPeriod: report.CollectedInPeriod,
		DailyPayments:     report.DailyPayments,
		MethodPayments:    report.MethodPayments,
	}
	if b.maxRows > 0 && len(installments) > b.maxRows {
		installments = installments[:b.maxRows]
		view.Truncated = true
	}
	if b.maxRows > 0 && len(payments) > b.maxRows {
		payments = payments[:b.maxRows]
		view.Truncated = true
	}
	view.Installments = installments
	view.Payments = payments
	return view
}

// InstallmentDataset flattens the installment listing for export.
func (b *ReportViewBuilder) InstallmentDataset(view dto.SchoolReportView) export.Dataset {
	headers := []string{"Student", "Enrollment", "Sequence", "Due Date", "Amount", "Status", "Overdue", "Days Overdue"}
	rows := make([]map[string]string, 0, len(view.Installments))
	for _, inst := range view.Installments {
		overdue := "no"
		if inst.Overdue {
			overdue = "yes"
		}
		rows = append(rows, map[string]string{
			"Student":      inst.StudentID,
			"Enrollment":   inst.EnrollmentID,
			"Sequence":     strconv.Itoa(inst.Sequence),
			"Due Date":     inst.DueDate.Format("2006-01-02"),
			"Amount":       inst.Amount.String(),
			"Status":       string(inst.Status),
			"Overdue":      overdue,
			"Days Overdue": strconv.Itoa(inst.DaysOverdue),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// PaymentDataset flattens the payment history for export.
func (b *ReportViewBuilder) PaymentDataset(view dto.SchoolReportView) export.Dataset {
	headers := []string{"Paid At", "Student", "Enrollment", "Installment", "Method", "Amount", "Recorded By", "Notes"}
	rows := make([]map[string]string, 0, len(view.Payments))
	for _, p := range view.Payments {
		rows = append(rows, map[string]string{
			"Paid At":     p.PaidAt.UTC().Format(time.RFC3339),
			"Student":     p.StudentID,
			"Enrollment":  p.EnrollmentID,
			"Installment": p.InstallmentID,
			"Method":      p.Method,
			"Amount":      p.Amount.String(),
			"Recorded By": p.RecordedBy,
			"Notes":       p.Notes,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// StudentStatement splits a student's open installments into overdue and
// upcoming lists and orders the payment history newest first.
func (b *ReportViewBuilder) StudentStatement(summary models.StudentFinancialSummary, ledgers []models.EnrollmentLedger, today time.Time) dto.StudentStatement {
	statement := dto.StudentStatement{
		StudentID:  summary.StudentID,
		AsOf:       models.DateOf(today).Format("2006-01-02"),
		Summary:    summary,
		Upcoming:   []models.Installment{},
		Overdue:    []models.Installment{},
		History:    []models.Payment{},
		Categories: []string{},
	}
	seen := map[string]bool{}
	for _, ledger := range ledgers {
		if category := ledger.Enrollment.CategoryID; category != "" && !seen[category] {
			seen[category] = true
			statement.Categories = append(statement.Categories, category)
		}
		for _, inst := range ledger.Installments {
			switch {
			case inst.Status == models.InstallmentStatusPaid:
			case inst.IsOverdue(today):
				statement.Overdue = append(statement.Overdue, inst)
			default:
				statement.Upcoming = append(statement.Upcoming, inst)
			}
		}
		statement.History = append(statement.History, ledger.Payments...)
	}
	sort.Strings(statement.Categories)
	sort.SliceStable(statement.Overdue, func(i, j int) bool { return dueBefore(statement.Overdue[i], statement.Overdue[j]) })
	sort.SliceStable(statement.Upcoming, func(i, j int) bool { return dueBefore(statement.Upcoming[i], statement.Upcoming[j]) })
	sort.SliceStable(statement.History, func(i, j int) bool { return paidAfter(statement.History[i], statement.History[j]) })
	return statement
}

func paidAfter(a, b models.Payment) bool {
	if !a.PaidAt.Equal(b.PaidAt) {
		return a.PaidAt.After(b.PaidAt)
	}
	return a.ID < b.ID
}
