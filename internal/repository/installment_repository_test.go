package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/driving-school-ledger/internal/models"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
	"github.com/noah-isme/driving-school-ledger/pkg/money"
)

var installmentRowColumns = []string{"id", "enrollment_id", "sequence", "amount", "due_date", "status", "created_at", "updated_at"}

func TestInstallmentRepositoryBulkCreateSingleStatement(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	due := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO installments (id, enrollment_id, sequence, amount, due_date, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8), ($9, $10, $11, $12, $13, $14, $15, $16)")).
		WithArgs(
			sqlmock.AnyArg(), "enr-1", 1, "400.00", due, models.InstallmentStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), "enr-1", 2, "600.00", due.AddDate(0, 1, 0), models.InstallmentStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	installments := []models.Installment{
		{EnrollmentID: "enr-1", Sequence: 1, Amount: money.MustParse("400"), DueDate: due},
		{EnrollmentID: "enr-1", Sequence: 2, Amount: money.MustParse("600"), DueDate: due.AddDate(0, 1, 0)},
	}
	require.NoError(t, repo.BulkCreate(context.Background(), nil, installments))
	assert.NotEmpty(t, installments[0].ID)
	assert.NotEqual(t, installments[0].ID, installments[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryBulkCreateDuplicateSequence(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO installments")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.BulkCreate(context.Background(), nil, []models.Installment{{EnrollmentID: "enr-1", Sequence: 1}})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryFindByIDForUpdate(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM installments WHERE id = $1 FOR UPDATE")).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows(installmentRowColumns).AddRow("inst-1", "enr-1", 1, "400.00", now, "PENDING", now, now))

	inst, err := repo.FindByIDForUpdate(context.Background(), nil, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, models.InstallmentStatusPending, inst.Status)
	assert.Equal(t, money.MustParse("400"), inst.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryTransitionStatus(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	query := regexp.QuoteMeta("UPDATE installments SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")
	mock.ExpectExec(query).
		WithArgs(models.InstallmentStatusPaid, sqlmock.AnyArg(), "inst-1", models.InstallmentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).
		WithArgs(models.InstallmentStatusPaid, sqlmock.AnyArg(), "inst-1", models.InstallmentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.TransitionStatus(context.Background(), nil, "inst-1", models.InstallmentStatusPending, models.InstallmentStatusPaid)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(context.Background(), nil, "inst-1", models.InstallmentStatusPending, models.InstallmentStatusPaid)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryCountByEnrollment(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM installments WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByEnrollment(context.Background(), nil, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryListByEnrollmentIDs(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM installments WHERE enrollment_id = ANY($1) ORDER BY enrollment_id ASC, sequence ASC")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(installmentRowColumns).
			AddRow("inst-1", "enr-1", 1, "400.00", now, "PAID", now, now).
			AddRow("inst-2", "enr-2", 1, "100.00", now, "PENDING", now, now))

	list, err := repo.ListByEnrollmentIDs(context.Background(), []string{"enr-1", "enr-2"})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())

	empty, err := repo.ListByEnrollmentIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
