package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/driving-school-ledger/internal/models"
)

const paymentColumns = `id, installment_id, enrollment_id, amount, method, paid_at, notes, recorded_by, created_at`

// PaymentRepository persists settlement records.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a payment row.
func (r *PaymentRepository) Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.PaidAt.IsZero() {
		payment.PaidAt = now
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}

	const query = `INSERT INTO payments (id, installment_id, enrollment_id, amount, method, paid_at, notes, recorded_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.exec(exec).ExecContext(ctx, query,
		payment.ID, payment.InstallmentID, payment.EnrollmentID, payment.Amount, payment.Method,
		payment.PaidAt, payment.Notes, payment.RecordedBy, payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// FindByID returns a payment by id.
func (r *PaymentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	var payment models.Payment
	if err := sqlx.GetContext(ctx, r.exec(exec), &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByIDForUpdate loads and row-locks a payment ahead of a reversal.
func (r *PaymentRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	var payment models.Payment
	if err := sqlx.GetContext(ctx, r.exec(exec), &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Delete removes a payment; sql.ErrNoRows signals it was already gone.
func (r *PaymentRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM payments WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("payment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByInstallment returns how many live payments reference an installment.
func (r *PaymentRepository) CountByInstallment(ctx context.Context, exec sqlx.ExtContext, installmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM payments WHERE installment_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, installmentID); err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return count, nil
}

// ListByEnrollment returns payments of an enrollment in the order they were made.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE enrollment_id = $1 ORDER BY paid_at ASC, id ASC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// ListByEnrollmentIDs loads the payments of several enrollments at once.
func (r *PaymentRepository) ListByEnrollmentIDs(ctx context.Context, enrollmentIDs []string) ([]models.Payment, error) {
	if len(enrollmentIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE enrollment_id = ANY($1) ORDER BY paid_at ASC, id ASC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, pq.Array(enrollmentIDs)); err != nil {
		return nil, fmt.Errorf("list payments by enrollments: %w", err)
	}
	return payments, nil
}
