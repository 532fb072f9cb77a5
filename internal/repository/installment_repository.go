package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/driving-school-ledger/internal/models"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
)

const installmentColumns = `id, enrollment_id, sequence, amount, due_date, status, created_at, updated_at`

// InstallmentRepository persists scheduled installments.
type InstallmentRepository struct {
	db *sqlx.DB
}

// NewInstallmentRepository constructs the repository.
func NewInstallmentRepository(db *sqlx.DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

func (r *InstallmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BulkCreate writes a whole schedule in one multi-row insert.
func (r *InstallmentRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, installments []models.Installment) error {
	if len(installments) == 0 {
		return nil
	}
	now := time.Now().UTC()
	placeholders := make([]string, 0, len(installments))
	args := make([]interface{}, 0, len(installments)*8)
	for i := range installments {
		inst := &installments[i]
		if inst.ID == "" {
			inst.ID = uuid.NewString()
		}
		if inst.Status == "" {
			inst.Status = models.InstallmentStatusPending
		}
		if inst.CreatedAt.IsZero() {
			inst.CreatedAt = now
		}
		inst.UpdatedAt = inst.CreatedAt

		base := len(args)
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, inst.ID, inst.EnrollmentID, inst.Sequence, inst.Amount, inst.DueDate, inst.Status, inst.CreatedAt, inst.UpdatedAt)
	}

	query := `INSERT INTO installments (` + installmentColumns + `) VALUES ` + strings.Join(placeholders, ", ")
	if _, err := r.exec(exec).ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "installments already scheduled for enrollment")
		}
		return fmt.Errorf("bulk insert installments: %w", err)
	}
	return nil
}

// CountByEnrollment returns how many installments an enrollment has.
func (r *InstallmentRepository) CountByEnrollment(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM installments WHERE enrollment_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, enrollmentID); err != nil {
		return 0, fmt.Errorf("count installments: %w", err)
	}
	return count, nil
}

// FindByID loads an installment without locking it.
func (r *InstallmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE id = $1`
	var inst models.Installment
	if err := sqlx.GetContext(ctx, r.exec(exec), &inst, query, id); err != nil {
		return nil, err
	}
	return &inst, nil
}

// FindByIDForUpdate loads and row-locks an installment; concurrent settlers
// of the same installment queue behind this lock.
func (r *InstallmentRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE id = $1 FOR UPDATE`
	var inst models.Installment
	if err := sqlx.GetContext(ctx, r.exec(exec), &inst, query, id); err != nil {
		return nil, err
	}
	return &inst, nil
}

// TransitionStatus moves an installment from one status to another. It
// reports false when the row was no longer in the expected status.
func (r *InstallmentRepository) TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.InstallmentStatus) (bool, error) {
	const query = `UPDATE installments SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.exec(exec).ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update installment status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("installment status rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListByEnrollment returns an enrollment's installments ordered by sequence.
func (r *InstallmentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE enrollment_id = $1 ORDER BY sequence ASC`
	var installments []models.Installment
	if err := r.db.SelectContext(ctx, &installments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return installments, nil
}

// ListByEnrollmentIDs loads the installments of several enrollments at once.
func (r *InstallmentRepository) ListByEnrollmentIDs(ctx context.Context, enrollmentIDs []string) ([]models.Installment, error) {
	if len(enrollmentIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE enrollment_id = ANY($1) ORDER BY enrollment_id ASC, sequence ASC`
	var installments []models.Installment
	if err := r.db.SelectContext(ctx, &installments, query, pq.Array(enrollmentIDs)); err != nil {
		return nil, fmt.Errorf("list installments by enrollments: %w", err)
	}
	return installments, nil
}
