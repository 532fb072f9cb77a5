package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInstallmentOverdueIsDerivedFromDueDay(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	inst := Installment{DueDate: due, Status: InstallmentStatusPending}
	assert.False(t, inst.IsOverdue(today), "due today is not overdue")

	inst.DueDate = due.AddDate(0, 0, -3)
	assert.True(t, inst.IsOverdue(today))
	assert.Equal(t, 3, inst.DaysOverdue(today))

	inst.Status = InstallmentStatusPaid
	assert.False(t, inst.IsOverdue(today))
	assert.Equal(t, 0, inst.DaysOverdue(today))
}

func TestOverdueComparesCalendarDaysAcrossZones(t *testing.T) {
	luanda := time.FixedZone("WAT", 3600)
	// 00:30 local on the 11th is still the 10th in UTC.
	today := time.Date(2026, 3, 11, 0, 30, 0, 0, luanda)
	inst := Installment{DueDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), Status: InstallmentStatusPending}
	assert.True(t, inst.IsOverdue(today))
	assert.Equal(t, 1, inst.DaysOverdue(today))
}

func TestClamps(t *testing.T) {
	for in, want := range map[int]int{-4: 1, 0: 1, 1: 1, 2: 2, 3: 3, 4: 3, 99: 3} {
		assert.Equal(t, want, ClampInstallmentCount(in), in)
	}
	for in, want := range map[int]int{-1: 1, 0: 1, 3: 3, 6: 6, 7: 6, 12: 6} {
		assert.Equal(t, want, ClampContractMonths(in), in)
	}
}
