package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/driving-school-ledger/internal/models"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
)

const enrollmentColumns = `id, student_id, school_id, category_id, total_cost, start_date, duration_months, status, created_by, created_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.exec(exec), &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByIDForUpdate loads and row-locks an enrollment inside a transaction.
func (r *EnrollmentRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1 FOR UPDATE`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.exec(exec), &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActive reports whether the student already holds an active enrollment
// for the category at the school.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, exec sqlx.ExtContext, studentID, schoolID, categoryID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND school_id = $2 AND category_id = $3 AND status = $4)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, studentID, schoolID, categoryID, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return exists, nil
}

// Create inserts a new enrollment row.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO enrollments (id, student_id, school_id, category_id, total_cost, start_date, duration_months, status, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.exec(exec).ExecContext(ctx, query,
		enrollment.ID, enrollment.StudentID, enrollment.SchoolID, enrollment.CategoryID,
		enrollment.TotalCost, enrollment.StartDate, enrollment.DurationMonths,
		enrollment.Status, enrollment.CreatedBy, enrollment.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment in this category")
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// ListByStudent returns every enrollment owned by a student, oldest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 ORDER BY created_at ASC, id ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollments by student: %w", err)
	}
	return enrollments, nil
}

// ListBySchool returns every enrollment registered at a school, oldest first.
func (r *EnrollmentRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE school_id = $1 ORDER BY created_at ASC, id ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, schoolID); err != nil {
		return nil, fmt.Errorf("list enrollments by school: %w", err)
	}
	return enrollments, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
