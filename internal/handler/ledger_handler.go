package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/driving-school-ledger/internal/dto"
	"github.com/noah-isme/driving-school-ledger/internal/models"
	"github.com/noah-isme/driving-school-ledger/internal/service"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
	"github.com/noah-isme/driving-school-ledger/pkg/money"
	"github.com/noah-isme/driving-school-ledger/pkg/response"
)

const (
	headerIdempotencyKey     = "Idempotency-Key"
	headerIdempotentReplayed = "Idempotent-Replayed"
	maxIdempotencyKeyLength  = 128
	idempotencyScopePayments = "payments"
)

type ledgerService interface {
	Enroll(ctx context.Context, req dto.EnrollRequest, actor models.Actor) (*dto.EnrollmentResponse, error)
	ScheduleInstallments(ctx context.Context, enrollmentID string, req dto.ScheduleInstallmentsRequest, actor models.Actor) (*dto.EnrollmentResponse, error)
	ApplyPayment(ctx context.Context, req dto.ApplyPaymentRequest, actor models.Actor) (*dto.PaymentReceipt, error)
	ApplyArbitraryPayment(ctx context.Context, req dto.ApplyPaymentRequest, amount money.Money, actor models.Actor) (*dto.PaymentReceipt, error)
	ReversePayment(ctx context.Context, paymentID string, actor models.Actor) (*dto.ReversalResult, error)
	ListInstallments(ctx context.Context, enrollmentID string) ([]models.Installment, error)
	ListPayments(ctx context.Context, enrollmentID string) ([]models.Payment, error)
}

type idempotencyGuard interface {
	Begin(ctx context.Context, scope, key string) (*service.IdempotencyRecord, error)
	Complete(ctx context.Context, scope, key string, status int, response interface{})
	Release(ctx context.Context, scope, key string)
}

// LedgerHandler exposes enrollment, installment and payment endpoints.
type LedgerHandler struct {
	ledger      ledgerService
	idempotency idempotencyGuard
}

// NewLedgerHandler constructs the handler. idempotency may be nil.
func NewLedgerHandler(ledger ledgerService, idempotency idempotencyGuard) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, idempotency: idempotency}
}

// Enroll godoc
// @Summary Enroll a student and schedule installments
// @Tags Ledger
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *LedgerHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment payload"))
		return
	}
	result, err := h.ledger.Enroll(c.Request.Context(), req, claims.Actor())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ScheduleInstallments godoc
// @Summary Schedule installments for an enrollment without any
// @Tags Ledger
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.ScheduleInstallmentsRequest true "Installment plan"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/installments [post]
func (h *LedgerHandler) ScheduleInstallments(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ScheduleInstallmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid installment plan payload"))
		return
	}
	result, err := h.ledger.ScheduleInstallments(c.Request.Context(), c.Param("id"), req, claims.Actor())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListInstallments godoc
// @Summary List installments of an enrollment
// @Tags Ledger
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/installments [get]
func (h *LedgerHandler) ListInstallments(c *gin.Context) {
	items, err := h.ledger.ListInstallments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListPayments godoc
// @Summary List payments of an enrollment
// @Tags Ledger
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/payments [get]
func (h *LedgerHandler) ListPayments(c *gin.Context) {
	items, err := h.ledger.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ApplyPayment godoc
// @Summary Settle an installment
// @Description Records a payment for the installment's full amount, or for `amount` when given. Send Idempotency-Key to make retries safe.
// @Tags Ledger
// @Accept json
// @Produce json
// @Param id path string true "Installment ID"
// @Param Idempotency-Key header string false "Client retry key"
// @Param payload body dto.ApplyPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /installments/{id}/payments [post]
func (h *LedgerHandler) ApplyPayment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payment payload"))
		return
	}
	req.InstallmentID = c.Param("id")

	key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
	if len(key) > maxIdempotencyKeyLength {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "idempotency key too long"))
		return
	}
	scope := idempotencyScopePayments + ":" + claims.UserID + ":" + req.InstallmentID
	if key != "" && h.idempotency != nil {
		record, err := h.idempotency.Begin(c.Request.Context(), scope, key)
		if err != nil {
			response.Error(c, err)
			return
		}
		if record != nil {
			c.Header(headerIdempotentReplayed, "true")
			response.JSON(c, record.Status, json.RawMessage(record.Response), nil)
			return
		}
	}

	var (
		receipt *dto.PaymentReceipt
		err     error
	)
	if req.Amount != nil {
		receipt, err = h.ledger.ApplyArbitraryPayment(c.Request.Context(), req, *req.Amount, claims.Actor())
	} else {
		receipt, err = h.ledger.ApplyPayment(c.Request.Context(), req, claims.Actor())
	}
	if err != nil {
		if key != "" && h.idempotency != nil {
			h.idempotency.Release(c.Request.Context(), scope, key)
		}
		response.Error(c, err)
		return
	}
	if key != "" && h.idempotency != nil {
		h.idempotency.Complete(c.Request.Context(), scope, key, http.StatusCreated, receipt)
	}
	response.Created(c, receipt)
}

// ReversePayment godoc
// @Summary Reverse a payment
// @Description Deletes the payment; the installment returns to PENDING when no other payment remains.
// @Tags Ledger
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [delete]
func (h *LedgerHandler) ReversePayment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.ledger.ReversePayment(c.Request.Context(), c.Param("id"), claims.Actor())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
