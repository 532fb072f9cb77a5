package service

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/driving-school-ledger/internal/models"
	"github.com/noah-isme/driving-school-ledger/pkg/money"
)

// SummarizeEnrollment projects one enrollment's installments and payments into
// a financial summary as of today. Payments count toward totalPaid only while
// their installment is Paid.
func SummarizeEnrollment(ledger models.EnrollmentLedger, today time.Time) models.FinancialSummary {
	summary := models.FinancialSummary{
		EnrollmentID:     ledger.Enrollment.ID,
		StudentID:        ledger.Enrollment.StudentID,
		SchoolID:         ledger.Enrollment.SchoolID,
		InstallmentCount: len(ledger.Installments),
	}

	paid := make(map[string]bool, len(ledger.Installments))
	for _, inst := range ledger.Installments {
		summary.TotalDue = summary.TotalDue.Add(inst.Amount)
		switch inst.Status {
		case models.InstallmentStatusPaid:
			summary.Counts.Paid++
			paid[inst.ID] = true
		case models.InstallmentStatusPartiallyPaid:
			summary.Counts.PartiallyPaid++
		default:
			summary.Counts.Pending++
		}
		if inst.IsOverdue(today) {
			summary.Counts.Overdue++
			summary.OverdueAmount = summary.OverdueAmount.Add(inst.Amount)
		}
	}
	for _, p := range ledger.Payments {
		if paid[p.InstallmentID] {
			summary.TotalPaid = summary.TotalPaid.Add(p.Amount)
		}
	}

	finalize(&summary)
	return summary
}

// SummarizeStudent folds every enrollment of a student and finds the earliest
// unpaid installment across all of them.
func SummarizeStudent(studentID string, ledgers []models.EnrollmentLedger, today time.Time) models.StudentFinancialSummary {
	result := models.StudentFinancialSummary{
		StudentID:   studentID,
		Enrollments: make([]models.FinancialSummary, 0, len(ledgers)),
	}
	for _, ledger := range ledgers {
		result.Enrollments = append(result.Enrollments, SummarizeEnrollment(ledger, today))
	}
	result.Totals = foldSummaries(result.Enrollments)
	result.Totals.StudentID = studentID
	result.NextDueInstallment = nextDue(ledgers)
	return result
}

// SummarizeSchool folds every enrollment of a school. Totals cover everything;
// the installment and payment listings and the payment buckets honour filter.
// Payment days are read in today's location so they line up with overdue
// detection.
func SummarizeSchool(schoolID string, ledgers []models.EnrollmentLedger, filter models.SchoolReportFilter, today time.Time) models.SchoolReport {
	report := models.SchoolReport{
		SchoolID:        schoolID,
		AsOf:            models.DateOf(today).Format("2006-01-02"),
		Filter:          filter,
		EnrollmentCount: len(ledgers),
		Enrollments:     make([]models.FinancialSummary, 0, len(ledgers)),
		Installments:    []models.ReportInstallment{},
		Payments:        []models.ReportPayment{},
		DailyPayments:   []models.DailyPaymentBucket{},
		MethodPayments:  []models.MethodPaymentBucket{},
	}

	loc := today.Location()
	daily := map[string]*models.DailyPaymentBucket{}
	methods := map[string]*models.MethodPaymentBucket{}

	for _, ledger := range ledgers {
		report.Enrollments = append(report.Enrollments, SummarizeEnrollment(ledger, today))
		studentID := ledger.Enrollment.StudentID

		for _, inst := range ledger.Installments {
			if !installmentMatches(inst, filter, today) {
				continue
			}
			report.Installments = append(report.Installments, models.ReportInstallment{
				Installment: inst,
				StudentID:   studentID,
				Overdue:     inst.IsOverdue(today),
				DaysOverdue: inst.DaysOverdue(today),
			})
		}

		for _, p := range ledger.Payments {
			if !paymentMatches(p, filter, loc) {
				continue
			}
			report.Payments = append(report.Payments, models.ReportPayment{Payment: p, StudentID: studentID})
			report.CollectedInPeriod = report.CollectedInPeriod.Add(p.Amount)

			dayKey := models.DateOf(p.PaidAt.In(loc)).Format("2006-01-02")
			bucket, ok := daily[dayKey]
			if !ok {
				bucket = &models.DailyPaymentBucket{Date: dayKey}
				daily[dayKey] = bucket
			}
			bucket.Count++
			bucket.Amount = bucket.Amount.Add(p.Amount)

			methodKey := normaliseMethod(p.Method)
			mb, ok := methods[methodKey]
			if !ok {
				mb = &models.MethodPaymentBucket{Method: methodKey}
				methods[methodKey] = mb
			}
			mb.Count++
			mb.Amount = mb.Amount.Add(p.Amount)
		}
	}

	report.Totals = foldSummaries(report.Enrollments)
	report.Totals.SchoolID = schoolID

	for _, bucket := range daily {
		report.DailyPayments = append(report.DailyPayments, *bucket)
	}
	sort.Slice(report.DailyPayments, func(i, j int) bool {
		return report.DailyPayments[i].Date < report.DailyPayments[j].Date
	})
	for _, bucket := range methods {
		report.MethodPayments = append(report.MethodPayments, *bucket)
	}
	sort.Slice(report.MethodPayments, func(i, j int) bool {
		return report.MethodPayments[i].Method < report.MethodPayments[j].Method
	})
	return report
}

func installmentMatches(inst models.Installment, filter models.SchoolReportFilter, today time.Time) bool {
	switch filter.Status {
	case "":
	case models.InstallmentStatusOverdue:
		if !inst.IsOverdue(today) {
			return false
		}
	default:
		if inst.Status != filter.Status {
			return false
		}
	}
	if filter.MinDaysOverdue > 0 && inst.DaysOverdue(today) < filter.MinDaysOverdue {
		return false
	}
	return true
}

func paymentMatches(p models.Payment, filter models.SchoolReportFilter, loc *time.Location) bool {
	day := models.DateOf(p.PaidAt.In(loc))
	if filter.From != nil && day.Before(models.DateOf(*filter.From)) {
		return false
	}
	if filter.To != nil && day.After(models.DateOf(*filter.To)) {
		return false
	}
	if filter.Method != "" && normaliseMethod(p.Method) != normaliseMethod(filter.Method) {
		return false
	}
	return true
}

func normaliseMethod(method string) string {
	return strings.ToLower(strings.TrimSpace(method))
}

func foldSummaries(list []models.FinancialSummary) models.FinancialSummary {
	var total models.FinancialSummary
	for _, s := range list {
		total.TotalDue = total.TotalDue.Add(s.TotalDue)
		total.TotalPaid = total.TotalPaid.Add(s.TotalPaid)
		total.OverdueAmount = total.OverdueAmount.Add(s.OverdueAmount)
		total.InstallmentCount += s.InstallmentCount
		total.Counts = total.Counts.Add(s.Counts)
	}
	finalize(&total)
	return total
}

func finalize(s *models.FinancialSummary) {
	s.Pending = s.TotalDue.Sub(s.TotalPaid)
	s.PercentPaid = money.Percent(s.TotalPaid, s.TotalDue)
	switch {
	case !s.Pending.IsPositive():
		s.FinancialStatus = models.FinancialStatusSettled
	case s.Counts.Overdue > 0:
		s.FinancialStatus = models.FinancialStatusOverdue
	default:
		s.FinancialStatus = models.FinancialStatusOnTrack
	}
}

func nextDue(ledgers []models.EnrollmentLedger) *models.Installment {
	var next *models.Installment
	for _, ledger := range ledgers {
		for i := range ledger.Installments {
			inst := ledger.Installments[i]
			if inst.Status == models.InstallmentStatusPaid {
				continue
			}
			if next == nil || dueBefore(inst, *next) {
				candidate := inst
				next = &candidate
			}
		}
	}
	return next
}

func dueBefore(a, b models.Installment) bool {
	da, db := models.DateOf(a.DueDate), models.DateOf(b.DueDate)
	if !da.Equal(db) {
		return da.Before(db)
	}
	if a.EnrollmentID != b.EnrollmentID {
		return a.EnrollmentID < b.EnrollmentID
	}
	return a.Sequence < b.Sequence
}
