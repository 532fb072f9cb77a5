package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/driving-school-ledger/internal/dto"
	"github.com/noah-isme/driving-school-ledger/internal/middleware"
	"github.com/noah-isme/driving-school-ledger/internal/models"
	"github.com/noah-isme/driving-school-ledger/internal/service"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
	"github.com/noah-isme/driving-school-ledger/pkg/money"
)

type ledgerServiceMock struct {
	enrollResp   *dto.EnrollmentResponse
	enrollErr    error
	receipt      *dto.PaymentReceipt
	applyErr     error
	reversal     *dto.ReversalResult
	reverseErr   error
	installments []models.Installment

	lastApply     dto.ApplyPaymentRequest
	lastAmount    *money.Money
	lastActor     models.Actor
	applyCalls    int
	arbitraryUsed bool
}

func (m *ledgerServiceMock) Enroll(ctx context.Context, req dto.EnrollRequest, actor models.Actor) (*dto.EnrollmentResponse, error) {
	m.lastActor = actor
	return m.enrollResp, m.enrollErr
}

func (m *ledgerServiceMock) ScheduleInstallments(ctx context.Context, enrollmentID string, req dto.ScheduleInstallmentsRequest, actor models.Actor) (*dto.EnrollmentResponse, error) {
	return m.enrollResp, m.enrollErr
}

func (m *ledgerServiceMock) ApplyPayment(ctx context.Context, req dto.ApplyPaymentRequest, actor models.Actor) (*dto.PaymentReceipt, error) {
	m.applyCalls++
	m.lastApply = req
	m.lastActor = actor
	return m.receipt, m.applyErr
}

func (m *ledgerServiceMock) ApplyArbitraryPayment(ctx context.Context, req dto.ApplyPaymentRequest, amount money.Money, actor models.Actor) (*dto.PaymentReceipt, error) {
	m.applyCalls++
	m.arbitraryUsed = true
	m.lastApply = req
	m.lastAmount = &amount
	return m.receipt, m.applyErr
}

func (m *ledgerServiceMock) ReversePayment(ctx context.Context, paymentID string, actor models.Actor) (*dto.ReversalResult, error) {
	return m.reversal, m.reverseErr
}

func (m *ledgerServiceMock) ListInstallments(ctx context.Context, enrollmentID string) ([]models.Installment, error) {
	if enrollmentID == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return m.installments, nil
}

func (m *ledgerServiceMock) ListPayments(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	return []models.Payment{}, nil
}

type guardStub struct {
	record    *service.IdempotencyRecord
	beginErr  error
	completed int
	released  int
	scope     string
}

func (g *guardStub) Begin(ctx context.Context, scope, key string) (*service.IdempotencyRecord, error) {
	g.scope = scope
	return g.record, g.beginErr
}

func (g *guardStub) Complete(ctx context.Context, scope, key string, status int, response interface{}) {
	g.completed++
}

func (g *guardStub) Release(ctx context.Context, scope, key string) {
	g.released++
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func cashier() *models.JWTClaims {
	return &models.JWTClaims{UserID: "usr-cashier", Role: models.RoleCashier}
}

func sampleReceipt() *dto.PaymentReceipt {
	return &dto.PaymentReceipt{
		Payment:        models.Payment{ID: "pay-1", InstallmentID: "inst-1", Amount: money.MustParse("300")},
		Installment:    models.Installment{ID: "inst-1", Status: models.InstallmentStatusPaid},
		PreviousStatus: models.InstallmentStatusPending,
	}
}

func TestLedgerHandlerEnroll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &ledgerServiceMock{enrollResp: &dto.EnrollmentResponse{Enrollment: models.Enrollment{ID: "enr-1"}}}
	h := NewLedgerHandler(svc, nil)

	c, w := newGinContext(http.MethodPost, "/enrollments", []byte(`{"student_id":"stu-1","school_id":"sch-1","category_id":"B","total_cost":"1000.00","installment_count":3}`))
	c.Set(middleware.ContextUserKey, cashier())
	h.Enroll(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"enr-1"`)
	assert.Equal(t, "usr-cashier", svc.lastActor.UserID)

	c, w = newGinContext(http.MethodPost, "/enrollments", []byte(`{"total_cost":"abc"}`))
	c.Set(middleware.ContextUserKey, cashier())
	h.Enroll(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLedgerHandlerEnrollRejectsOutOfRangeTotal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &ledgerServiceMock{enrollResp: &dto.EnrollmentResponse{Enrollment: models.Enrollment{ID: "enr-1"}}}
	h := NewLedgerHandler(svc, nil)

	for _, total := range []string{`184467440737095516.17`, `"92233720368547758.08"`, `1e20`} {
		c, w := newGinContext(http.MethodPost, "/enrollments", []byte(`{"student_id":"stu-1","school_id":"sch-1","category_id":"B","total_cost":`+total+`,"installment_count":1}`))
		c.Set(middleware.ContextUserKey, cashier())
		h.Enroll(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, total)
	}
	assert.Empty(t, svc.lastActor.UserID)
}

func TestLedgerHandlerApplyPaymentRoutesByAmount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &ledgerServiceMock{receipt: sampleReceipt()}
	h := NewLedgerHandler(svc, nil)

	c, w := newGinContext(http.MethodPost, "/installments/inst-1/payments", []byte(`{"method":"cash","enrollment_id":"enr-1"}`))
	c.Params = gin.Params{{Key: "id", Value: "inst-1"}}
	c.Set(middleware.ContextUserKey, cashier())
	h.ApplyPayment(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.False(t, svc.arbitraryUsed)
	assert.Equal(t, "inst-1", svc.lastApply.InstallmentID)
	assert.Equal(t, "enr-1", svc.lastApply.EnrollmentID)

	c, w = newGinContext(http.MethodPost, "/installments/inst-1/payments", []byte(`{"method":"cash","amount":150.5}`))
	c.Params = gin.Params{{Key: "id", Value: "inst-1"}}
	c.Set(middleware.ContextUserKey, cashier())
	h.ApplyPayment(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, svc.arbitraryUsed)
	require.NotNil(t, svc.lastAmount)
	assert.Equal(t, "150.50", svc.lastAmount.String())
}

func TestLedgerHandlerApplyPaymentMapsAlreadySettled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	guard := &guardStub{}
	svc := &ledgerServiceMock{applyErr: appErrors.Clone(appErrors.ErrAlreadySettled, "installment already settled")}
	h := NewLedgerHandler(svc, guard)

	c, w := newGinContext(http.MethodPost, "/installments/inst-1/payments", []byte(`{"method":"cash"}`))
	c.Params = gin.Params{{Key: "id", Value: "inst-1"}}
	c.Request.Header.Set("Idempotency-Key", "retry-1")
	c.Set(middleware.ContextUserKey, cashier())
	h.ApplyPayment(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_SETTLED")
	assert.Equal(t, 1, guard.released)
	assert.Zero(t, guard.completed)
}

func TestLedgerHandlerApplyPaymentReplaysIdempotentResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stored, _ := json.Marshal(sampleReceipt())
	guard := &guardStub{record: &service.IdempotencyRecord{State: "done", Status: http.StatusCreated, Response: stored}}
	svc := &ledgerServiceMock{receipt: sampleReceipt()}
	h := NewLedgerHandler(svc, guard)

	c, w := newGinContext(http.MethodPost, "/installments/inst-1/payments", []byte(`{"method":"cash"}`))
	c.Params = gin.Params{{Key: "id", Value: "inst-1"}}
	c.Request.Header.Set("Idempotency-Key", "retry-1")
	c.Set(middleware.ContextUserKey, cashier())
	h.ApplyPayment(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
	assert.Contains(t, w.Body.String(), `"pay-1"`)
	assert.Zero(t, svc.applyCalls, "a replay never touches the ledger")
	assert.Equal(t, "payments:usr-cashier:inst-1", guard.scope)
}

func TestLedgerHandlerApplyPaymentCompletesIdempotencyKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	guard := &guardStub{}
	svc := &ledgerServiceMock{receipt: sampleReceipt()}
	h := NewLedgerHandler(svc, guard)

	c, w := newGinContext(http.MethodPost, "/installments/inst-1/payments", []byte(`{"method":"cash"}`))
	c.Params = gin.Params{{Key: "id", Value: "inst-1"}}
	c.Request.Header.Set("Idempotency-Key", "retry-2")
	c.Set(middleware.ContextUserKey, cashier())
	h.ApplyPayment(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, guard.completed)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
}

func TestLedgerHandlerRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewLedgerHandler(&ledgerServiceMock{}, nil)

	c, w := newGinContext(http.MethodDelete, "/payments/pay-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "pay-1"}}
	h.ReversePayment(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLedgerHandlerListInstallmentsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewLedgerHandler(&ledgerServiceMock{}, nil)

	c, w := newGinContext(http.MethodGet, "/enrollments/missing/installments", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.ListInstallments(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
