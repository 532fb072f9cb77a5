package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/driving-school-ledger/internal/dto"
	"github.com/noah-isme/driving-school-ledger/internal/models"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
	"github.com/noah-isme/driving-school-ledger/pkg/money"
)

type txRunner interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type ledgerEnrollmentRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, exec sqlx.ExtContext, studentID, schoolID, categoryID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
}

type ledgerInstallmentRepository interface {
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, installments []models.Installment) error
	CountByEnrollment(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (int, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Installment, error)
	TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.InstallmentStatus) (bool, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Installment, error)
}

type ledgerPaymentRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	CountByInstallment(ctx context.Context, exec sqlx.ExtContext, installmentID string) (int, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
}

// LedgerConfig tunes enrollment defaults and the ledger calendar.
type LedgerConfig struct {
	DefaultInstallments int
	Location            *time.Location
}

// LedgerService owns every write to enrollments, installments and payments.
// Installment status only changes here.
type LedgerService struct {
	tx           txRunner
	enrollments  ledgerEnrollmentRepository
	installments ledgerInstallmentRepository
	payments     ledgerPaymentRepository
	scheduler    *InstallmentScheduler
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          LedgerConfig
	now          func() time.Time
}

// NewLedgerService wires the ledger.
func NewLedgerService(
	tx txRunner,
	enrollments ledgerEnrollmentRepository,
	installments ledgerInstallmentRepository,
	payments ledgerPaymentRepository,
	scheduler *InstallmentScheduler,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg LedgerConfig,
) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if scheduler == nil {
		scheduler = NewInstallmentScheduler(0)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultInstallments <= 0 {
		cfg.DefaultInstallments = models.MaxInstallments
	}
	return &LedgerService{
		tx:           tx,
		enrollments:  enrollments,
		installments: installments,
		payments:     payments,
		scheduler:    scheduler,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *LedgerService) localNow() time.Time {
	return s.now().In(s.cfg.Location)
}

// Enroll creates an enrollment and its installment schedule atomically.
func (s *LedgerService) Enroll(ctx context.Context, req dto.EnrollRequest, actor models.Actor) (*dto.EnrollmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}

	now := s.localNow()
	start, err := s.parseDate(req.StartDate, now)
	if err != nil {
		return nil, err
	}
	plan := InstallmentPlan{
		TotalCost: req.TotalCost,
		Count:     s.cfg.DefaultInstallments,
		StartDate: start,
	}
	if req.InstallmentCount != nil {
		plan.Count = *req.InstallmentCount
	}
	if req.FirstInstallmentAmount != nil {
		plan.FirstAmount = *req.FirstInstallmentAmount
	} else {
		plan.FirstAmount = defaultFirstAmount(req.TotalCost, models.ClampInstallmentCount(plan.Count))
	}

	installments, err := s.scheduler.Schedule(plan, now)
	if err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID:      req.StudentID,
		SchoolID:       req.SchoolID,
		CategoryID:     req.CategoryID,
		TotalCost:      req.TotalCost,
		StartDate:      start,
		DurationMonths: models.ClampContractMonths(req.DurationMonths),
		Status:         models.EnrollmentStatusActive,
		CreatedBy:      actor.UserID,
		CreatedAt:      now.UTC(),
	}

	started := time.Now()
	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		exists, err := s.enrollments.ExistsActive(ctx, exec, req.StudentID, req.SchoolID, req.CategoryID)
		if err != nil {
			return appErrors.Persistence(err, "failed to check existing enrollment")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment in this category")
		}
		if err := s.enrollments.Create(ctx, exec, enrollment); err != nil {
			return s.storageError(err, "failed to create enrollment")
		}
		for i := range installments {
			installments[i].EnrollmentID = enrollment.ID
		}
		if err := s.installments.BulkCreate(ctx, exec, installments); err != nil {
			return s.storageError(err, "failed to create installments")
		}
		return nil
	})
	s.metrics.ObserveTx("enroll", time.Since(started))
	if err != nil {
		return nil, s.finish(err, "enroll", zap.String("student_id", req.StudentID))
	}

	s.metrics.RecordEnrollment(true, len(installments))
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.Int("installments", len(installments)),
		zap.String("actor", actor.UserID),
	)
	return &dto.EnrollmentResponse{Enrollment: *enrollment, Installments: installments}, nil
}

// ScheduleInstallments persists a schedule for an enrollment that has none.
func (s *LedgerService) ScheduleInstallments(ctx context.Context, enrollmentID string, req dto.ScheduleInstallmentsRequest, actor models.Actor) (*dto.EnrollmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if strings.TrimSpace(enrollmentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment id is required")
	}

	now := s.localNow()
	var (
		enrollment   *models.Enrollment
		installments []models.Installment
	)
	started := time.Now()
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		enrollment, err = s.enrollments.FindByIDForUpdate(ctx, exec, enrollmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			}
			return appErrors.Persistence(err, "failed to load enrollment")
		}
		if req.TotalCost != nil && !req.TotalCost.Equal(enrollment.TotalCost) {
			return appErrors.Clone(appErrors.ErrInvalidInstallmentPlan, "total cost does not match enrollment")
		}

		existing, err := s.installments.CountByEnrollment(ctx, exec, enrollment.ID)
		if err != nil {
			return appErrors.Persistence(err, "failed to count installments")
		}
		if existing > 0 {
			return appErrors.Clone(appErrors.ErrConflict, "installments already scheduled for enrollment")
		}

		start := enrollment.StartDate
		if req.StartDate != "" {
			if start, err = s.parseDate(req.StartDate, now); err != nil {
				return err
			}
		}
		plan := InstallmentPlan{TotalCost: enrollment.TotalCost, Count: s.cfg.DefaultInstallments, StartDate: start}
		if req.InstallmentCount != nil {
			plan.Count = *req.InstallmentCount
		}
		if req.FirstInstallmentAmount != nil {
			plan.FirstAmount = *req.FirstInstallmentAmount
		} else {
			plan.FirstAmount = defaultFirstAmount(enrollment.TotalCost, models.ClampInstallmentCount(plan.Count))
		}

		installments, err = s.scheduler.Schedule(plan, now)
		if err != nil {
			return err
		}
		for i := range installments {
			installments[i].EnrollmentID = enrollment.ID
		}
		if err := s.installments.BulkCreate(ctx, exec, installments); err != nil {
			return s.storageError(err, "failed to create installments")
		}
		return nil
	})
	s.metrics.ObserveTx("schedule", time.Since(started))
	if err != nil {
		return nil, s.finish(err, "schedule installments", zap.String("enrollment_id", enrollmentID))
	}

	s.metrics.RecordEnrollment(false, len(installments))
	s.logger.Info("installments scheduled",
		zap.String("enrollment_id", enrollment.ID),
		zap.Int("installments", len(installments)),
		zap.String("actor", actor.UserID),
	)
	return &dto.EnrollmentResponse{Enrollment: *enrollment, Installments: installments}, nil
}

// ApplyPayment settles an installment in full. The recorded amount is always
// the installment's amount due.
func (s *LedgerService) ApplyPayment(ctx context.Context, req dto.ApplyPaymentRequest, actor models.Actor) (*dto.PaymentReceipt, error) {
	return s.settle(ctx, req, nil, actor)
}

// ApplyArbitraryPayment records a caller-supplied amount and still marks the
// installment Paid, even when the amount falls short.
func (s *LedgerService) ApplyArbitraryPayment(ctx context.Context, req dto.ApplyPaymentRequest, amount money.Money, actor models.Actor) (*dto.PaymentReceipt, error) {
	if !amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment amount must be greater than zero")
	}
	return s.settle(ctx, req, &amount, actor)
}

func (s *LedgerService) settle(ctx context.Context, req dto.ApplyPaymentRequest, override *money.Money, actor models.Actor) (*dto.PaymentReceipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if strings.TrimSpace(req.InstallmentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "installment id is required")
	}
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}

	path := "full"
	if override != nil {
		path = "arbitrary"
	}
	paidAt := s.now().UTC()
	if req.PaidAt != nil && !req.PaidAt.IsZero() {
		paidAt = req.PaidAt.UTC()
	}

	var receipt dto.PaymentReceipt
	started := time.Now()
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		inst, err := s.installments.FindByIDForUpdate(ctx, exec, req.InstallmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "installment not found")
			}
			return appErrors.Persistence(err, "failed to load installment")
		}
		if req.EnrollmentID != "" && inst.EnrollmentID != req.EnrollmentID {
			return appErrors.ErrMismatchedEnrollment
		}
		if inst.Status == models.InstallmentStatusPaid {
			return appErrors.ErrAlreadySettled
		}

		ok, err := s.installments.TransitionStatus(ctx, exec, inst.ID, inst.Status, models.InstallmentStatusPaid)
		if err != nil {
			return appErrors.Persistence(err, "failed to settle installment")
		}
		if !ok {
			return appErrors.ErrAlreadySettled
		}

		amount := inst.Amount
		if override != nil {
			amount = *override
		}
		payment := &models.Payment{
			InstallmentID: inst.ID,
			EnrollmentID:  inst.EnrollmentID,
			Amount:        amount,
			Method:        strings.TrimSpace(req.Method),
			PaidAt:        paidAt,
			Notes:         strings.TrimSpace(req.Notes),
			RecordedBy:    actor.UserID,
		}
		if err := s.payments.Create(ctx, exec, payment); err != nil {
			return appErrors.Persistence(err, "failed to record payment")
		}

		previous := inst.Status
		inst.Status = models.InstallmentStatusPaid
		receipt = dto.PaymentReceipt{
			Payment:        *payment,
			Installment:    *inst,
			PreviousStatus: previous,
			Underpaid:      amount.LessThan(inst.Amount),
		}
		return nil
	})
	s.metrics.ObserveTx("apply_payment", time.Since(started))
	if err != nil {
		if errors.Is(err, appErrors.ErrAlreadySettled) {
			s.metrics.RecordSettlementConflict()
		}
		return nil, s.finish(err, "apply payment", zap.String("installment_id", req.InstallmentID))
	}

	s.metrics.RecordSettlement(path, receipt.Underpaid)
	if receipt.Underpaid {
		s.logger.Warn("installment settled below amount due",
			zap.String("installment_id", receipt.Installment.ID),
			zap.String("amount_due", receipt.Installment.Amount.String()),
			zap.String("amount_paid", receipt.Payment.Amount.String()),
			zap.String("actor", actor.UserID),
		)
	}
	s.logger.Info("installment settled",
		zap.String("installment_id", receipt.Installment.ID),
		zap.String("payment_id", receipt.Payment.ID),
		zap.String("path", path),
		zap.String("actor", actor.UserID),
	)
	return &receipt, nil
}

// ReversePayment deletes a payment and reopens its installment when no other
// payment still settles it.
func (s *LedgerService) ReversePayment(ctx context.Context, paymentID string, actor models.Actor) (*dto.ReversalResult, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment id is required")
	}

	var result dto.ReversalResult
	started := time.Now()
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		payment, err := s.payments.FindByIDForUpdate(ctx, exec, paymentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
			}
			return appErrors.Persistence(err, "failed to load payment")
		}
		inst, err := s.installments.FindByIDForUpdate(ctx, exec, payment.InstallmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "installment not found")
			}
			return appErrors.Persistence(err, "failed to load installment")
		}

		if err := s.payments.Delete(ctx, exec, payment.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
			}
			return appErrors.Persistence(err, "failed to delete payment")
		}
		remaining, err := s.payments.CountByInstallment(ctx, exec, inst.ID)
		if err != nil {
			return appErrors.Persistence(err, "failed to count payments")
		}

		newStatus := inst.Status
		if inst.Status == models.InstallmentStatusPaid && remaining == 0 {
			if _, err := s.installments.TransitionStatus(ctx, exec, inst.ID, models.InstallmentStatusPaid, models.InstallmentStatusPending); err != nil {
				return appErrors.Persistence(err, "failed to reopen installment")
			}
			newStatus = models.InstallmentStatusPending
		}

		result = dto.ReversalResult{
			PaymentID:      payment.ID,
			InstallmentID:  inst.ID,
			EnrollmentID:   payment.EnrollmentID,
			Amount:         payment.Amount,
			PreviousStatus: inst.Status,
			NewStatus:      newStatus,
			ReversedBy:     actor.UserID,
			ReversedAt:     s.now().UTC(),
		}
		return nil
	})
	s.metrics.ObserveTx("reverse_payment", time.Since(started))
	if err != nil {
		return nil, s.finish(err, "reverse payment", zap.String("payment_id", paymentID))
	}

	s.metrics.RecordReversal(string(result.NewStatus))
	s.logger.Info("payment reversed",
		zap.String("payment_id", result.PaymentID),
		zap.String("installment_id", result.InstallmentID),
		zap.String("new_status", string(result.NewStatus)),
		zap.String("actor", actor.UserID),
	)
	return &result, nil
}

// ListInstallments returns an enrollment's schedule ordered by sequence.
func (s *LedgerService) ListInstallments(ctx context.Context, enrollmentID string) ([]models.Installment, error) {
	if err := s.ensureEnrollment(ctx, enrollmentID); err != nil {
		return nil, err
	}
	installments, err := s.installments.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to list installments")
	}
	return installments, nil
}

// ListPayments returns an enrollment's live payments.
func (s *LedgerService) ListPayments(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	if err := s.ensureEnrollment(ctx, enrollmentID); err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to list payments")
	}
	return payments, nil
}

func (s *LedgerService) ensureEnrollment(ctx context.Context, enrollmentID string) error {
	if _, err := s.enrollments.FindByID(ctx, nil, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Persistence(err, "failed to load enrollment")
	}
	return nil
}

func (s *LedgerService) parseDate(raw string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return models.DateOf(fallback), nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "start_date must be YYYY-MM-DD")
	}
	return parsed, nil
}

// storageError keeps typed errors from repositories and wraps the rest.
func (s *LedgerService) storageError(err error, msg string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Persistence(err, msg)
}

// finish logs and normalises an error coming out of a transaction.
func (s *LedgerService) finish(err error, op string, fields ...zap.Field) error {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		appErr = appErrors.Persistence(err, "")
	}
	fields = append(fields, zap.String("code", appErr.Code), zap.Error(err))
	if appErr.Status >= 500 {
		s.logger.Error(op+" failed", fields...)
	} else {
		s.logger.Debug(op+" rejected", fields...)
	}
	return appErr
}

// defaultFirstAmount splits the cost evenly when the caller gives no first
// installment amount.
func defaultFirstAmount(total money.Money, count int) money.Money {
	parts, err := money.SplitEvenly(total, count)
	if err != nil || len(parts) == 0 {
		return total
	}
	return parts[0]
}
