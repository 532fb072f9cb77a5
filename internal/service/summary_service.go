package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/driving-school-ledger/internal/models"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
)

type summaryEnrollmentReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListBySchool(ctx context.Context, schoolID string) ([]models.Enrollment, error)
}

type summaryInstallmentReader interface {
	ListByEnrollmentIDs(ctx context.Context, enrollmentIDs []string) ([]models.Installment, error)
}

type summaryPaymentReader interface {
	ListByEnrollmentIDs(ctx context.Context, enrollmentIDs []string) ([]models.Payment, error)
}

// SummaryService loads ledger rows and hands them to the aggregator. It never
// writes and never caches: every call recomputes from installments and payments.
type SummaryService struct {
	enrollments  summaryEnrollmentReader
	installments summaryInstallmentReader
	payments     summaryPaymentReader
	logger       *zap.Logger
	location     *time.Location
	now          func() time.Time
}

// NewSummaryService constructs the read side of the ledger.
func NewSummaryService(enrollments summaryEnrollmentReader, installments summaryInstallmentReader, payments summaryPaymentReader, location *time.Location, logger *zap.Logger) *SummaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &SummaryService{
		enrollments:  enrollments,
		installments: installments,
		payments:     payments,
		logger:       logger,
		location:     location,
		now:          time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *SummaryService) WithClock(now func() time.Time) *SummaryService {
	if now != nil {
		s.now = now
	}
	return s
}

// Today returns the current instant in the ledger's timezone.
func (s *SummaryService) Today() time.Time {
	return s.now().In(s.location)
}

// SummarizeEnrollment returns the financial summary of one enrollment.
func (s *SummaryService) SummarizeEnrollment(ctx context.Context, enrollmentID string) (*models.FinancialSummary, error) {
	if strings.TrimSpace(enrollmentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment id is required")
	}
	enrollment, err := s.enrollments.FindByID(ctx, nil, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Persistence(err, "failed to load enrollment")
	}
	ledgers, err := s.attach(ctx, []models.Enrollment{*enrollment})
	if err != nil {
		return nil, err
	}
	summary := SummarizeEnrollment(ledgers[0], s.Today())
	return &summary, nil
}

// SummarizeStudent folds every enrollment owned by the student. A student
// without enrollments is reported as not found.
func (s *SummaryService) SummarizeStudent(ctx context.Context, studentID string) (*models.StudentFinancialSummary, error) {
	ledgers, err := s.StudentLedgers(ctx, studentID)
	if err != nil {
		return nil, err
	}
	summary := SummarizeStudent(studentID, ledgers, s.Today())
	return &summary, nil
}

// SummarizeSchool folds every enrollment of the school under filter.
func (s *SummaryService) SummarizeSchool(ctx context.Context, schoolID string, filter models.SchoolReportFilter) (*models.SchoolReport, error) {
	if strings.TrimSpace(schoolID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school id is required")
	}
	enrollments, err := s.enrollments.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to list school enrollments")
	}
	ledgers, err := s.attach(ctx, enrollments)
	if err != nil {
		return nil, err
	}
	report := SummarizeSchool(schoolID, ledgers, filter, s.Today())
	return &report, nil
}

// StudentLedgers loads every enrollment of a student with its rows attached.
func (s *SummaryService) StudentLedgers(ctx context.Context, studentID string) ([]models.EnrollmentLedger, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to list student enrollments")
	}
	if len(enrollments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no enrollments")
	}
	return s.attach(ctx, enrollments)
}

func (s *SummaryService) attach(ctx context.Context, enrollments []models.Enrollment) ([]models.EnrollmentLedger, error) {
	if len(enrollments) == 0 {
		return []models.EnrollmentLedger{}, nil
	}
	ids := make([]string, len(enrollments))
	index := make(map[string]int, len(enrollments))
	ledgers := make([]models.EnrollmentLedger, len(enrollments))
	for i, e := range enrollments {
		ids[i] = e.ID
		index[e.ID] = i
		ledgers[i] = models.EnrollmentLedger{Enrollment: e}
	}

	installments, err := s.installments.ListByEnrollmentIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load installments")
	}
	for _, inst := range installments {
		if i, ok := index[inst.EnrollmentID]; ok {
			ledgers[i].Installments = append(ledgers[i].Installments, inst)
		}
	}

	payments, err := s.payments.ListByEnrollmentIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load payments")
	}
	for _, p := range payments {
		if i, ok := index[p.EnrollmentID]; ok {
			ledgers[i].Payments = append(ledgers[i].Payments, p)
		}
	}

	s.logger.Debug("ledgers loaded",
		zap.Int("enrollments", len(enrollments)),
		zap.Int("installments", len(installments)),
		zap.Int("payments", len(payments)),
	)
	return ledgers, nil
}
