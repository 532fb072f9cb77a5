package service

import (
	"time"

	"github.com/noah-isme/driving-school-ledger/internal/models"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
	"github.com/noah-isme/driving-school-ledger/pkg/money"
)

// InstallmentPlan is the scheduling input for one enrollment.
type InstallmentPlan struct {
	TotalCost   money.Money
	Count       int
	FirstAmount money.Money
	StartDate   time.Time
}

// InstallmentScheduler turns a plan into installment rows. It performs no I/O.
type InstallmentScheduler struct {
	singleDueDays int
}

// NewInstallmentScheduler builds a scheduler; a single-installment plan falls
// due singleDueDays after the start date (7 when unset).
func NewInstallmentScheduler(singleDueDays int) *InstallmentScheduler {
	if singleDueDays <= 0 {
		singleDueDays = 7
	}
	return &InstallmentScheduler{singleDueDays: singleDueDays}
}

// Schedule validates plan and returns Pending installments numbered 1..N
// whose amounts sum exactly to plan.TotalCost. createdAt anchors the monthly
// due dates of multi-installment plans.
func (s *InstallmentScheduler) Schedule(plan InstallmentPlan, createdAt time.Time) ([]models.Installment, error) {
	if !plan.TotalCost.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrInvalidInstallmentPlan, "total cost must be greater than zero")
	}

	count := models.ClampInstallmentCount(plan.Count)
	first := plan.FirstAmount
	if count == 1 {
		first = plan.TotalCost
	}
	if !first.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrInvalidInstallmentPlan, "first installment amount must be greater than zero")
	}
	if first.GreaterThan(plan.TotalCost) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInstallmentPlan, "first installment amount exceeds total cost")
	}

	amounts := []money.Money{first}
	if count > 1 {
		rest, err := money.SplitEvenly(plan.TotalCost.Sub(first), count-1)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidInstallmentPlan.Code, appErrors.ErrInvalidInstallmentPlan.Status, "cannot split remaining amount")
		}
		amounts = append(amounts, rest...)
	}
	for _, amount := range amounts {
		if !amount.IsPositive() {
			return nil, appErrors.Clone(appErrors.ErrInvalidInstallmentPlan, "remaining amount is too small to split into positive installments")
		}
	}

	installments := make([]models.Installment, count)
	for i, amount := range amounts {
		seq := i + 1
		installments[i] = models.Installment{
			Sequence: seq,
			Amount:   amount,
			DueDate:  s.dueDate(count, seq, plan.StartDate, createdAt),
			Status:   models.InstallmentStatusPending,
		}
	}
	return installments, nil
}

func (s *InstallmentScheduler) dueDate(count, seq int, start, createdAt time.Time) time.Time {
	if count == 1 {
		anchor := start
		if anchor.IsZero() {
			anchor = createdAt
		}
		return models.DateOf(anchor).AddDate(0, 0, s.singleDueDays)
	}
	return addMonths(models.DateOf(createdAt), seq)
}

// addMonths moves d forward by n calendar months, pinning to the last day of
// the target month instead of overflowing (Jan 31 + 1 month = Feb 28/29).
func addMonths(d time.Time, n int) time.Time {
	y, m, day := d.Date()
	firstOfTarget := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, d.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, d.Location())
}
