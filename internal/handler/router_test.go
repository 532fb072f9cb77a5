package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/driving-school-ledger/internal/dto"
	internalmiddleware "github.com/noah-isme/driving-school-ledger/internal/middleware"
	"github.com/noah-isme/driving-school-ledger/internal/models"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
)

type summaryServiceMock struct{}

func (summaryServiceMock) SummarizeEnrollment(ctx context.Context, enrollmentID string) (*models.FinancialSummary, error) {
	return &models.FinancialSummary{EnrollmentID: enrollmentID}, nil
}

func (summaryServiceMock) SummarizeStudent(ctx context.Context, studentID string) (*models.StudentFinancialSummary, error) {
	if studentID == "stu-none" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no enrollments")
	}
	return &models.StudentFinancialSummary{StudentID: studentID}, nil
}

type reportServiceMock struct {
	lastQuery dto.SchoolReportQuery
}

func (m *reportServiceMock) SchoolReport(ctx context.Context, query dto.SchoolReportQuery) (*dto.SchoolReportView, error) {
	m.lastQuery = query
	return &dto.SchoolReportView{SchoolID: query.SchoolID}, nil
}

func (m *reportServiceMock) ExportSchoolReport(ctx context.Context, query dto.SchoolReportQuery) (*dto.ExportFile, error) {
	m.lastQuery = query
	if query.Format == "docx" {
		return nil, appErrors.ErrUnsupportedFormat
	}
	return &dto.ExportFile{Filename: "school-" + query.SchoolID + ".csv", ContentType: "text/csv", Payload: []byte("a,b\n")}, nil
}

func (m *reportServiceMock) StudentStatement(ctx context.Context, studentID string) (*dto.StudentStatement, error) {
	return &dto.StudentStatement{StudentID: studentID}, nil
}

func buildLedgerRouter(reports *reportServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	testAuth := func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			userID := c.GetHeader("X-Test-User")
			if userID == "" {
				userID = "test-user"
			}
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: models.UserRole(role)})
		}
		c.Next()
	}

	RegisterRoutes(router.Group("/api/v1"), Routes{
		Ledger:    NewLedgerHandler(&ledgerServiceMock{receipt: sampleReceipt(), installments: []models.Installment{}}, nil),
		Summaries: NewSummaryHandler(summaryServiceMock{}),
		Reports:   NewReportHandler(reports),
		Auth:      testAuth,
	})
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLedgerRoutesIntegration(t *testing.T) {
	reports := &reportServiceMock{}
	router := buildLedgerRouter(reports)

	t.Run("unauthenticated", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/enrollments/enr-1/summary", nil)
		require.Equal(t, http.StatusUnauthorized, performRequest(router, req).Code)
	})

	t.Run("staff cannot pay", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/installments/inst-1/payments", bytes.NewBufferString(`{"method":"cash"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleStaff))
		require.Equal(t, http.StatusForbidden, performRequest(router, req).Code)
	})

	t.Run("cashier pays", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/installments/inst-1/payments", bytes.NewBufferString(`{"method":"cash"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleCashier))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Contains(t, resp.Body.String(), `"previous_status":"PENDING"`)
	})

	t.Run("staff reads installments", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/enrollments/enr-1/installments", nil)
		req.Header.Set("X-Test-Role", string(models.RoleStaff))
		require.Equal(t, http.StatusOK, performRequest(router, req).Code)
	})

	t.Run("student reads own summary", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/students/stu-1/summary", nil)
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		req.Header.Set("X-Test-User", "stu-1")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"student_id":"stu-1"`)
	})

	t.Run("student cannot read another student", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/students/stu-2/statement", nil)
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		req.Header.Set("X-Test-User", "stu-1")
		require.Equal(t, http.StatusForbidden, performRequest(router, req).Code)
	})

	t.Run("student without enrollments", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/students/stu-none/summary", nil)
		req.Header.Set("X-Test-Role", string(models.RoleAdmin))
		require.Equal(t, http.StatusNotFound, performRequest(router, req).Code)
	})

	t.Run("school report binds query", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/schools/sch-1/report?status=OVERDUE&min_days_overdue=10&method=cash&from=2026-01-01", nil)
		req.Header.Set("X-Test-Role", string(models.RoleStaff))
		require.Equal(t, http.StatusOK, performRequest(router, req).Code)
		require.Equal(t, "sch-1", reports.lastQuery.SchoolID)
		require.Equal(t, "OVERDUE", reports.lastQuery.Status)
		require.Equal(t, 10, reports.lastQuery.MinDaysOverdue)
		require.Equal(t, "2026-01-01", reports.lastQuery.From)
	})

	t.Run("school report rejects malformed query", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/schools/sch-1/report?min_days_overdue=soon", nil)
		req.Header.Set("X-Test-Role", string(models.RoleStaff))
		require.Equal(t, http.StatusBadRequest, performRequest(router, req).Code)
	})

	t.Run("export streams attachment", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/schools/sch-1/report/export?format=csv", nil)
		req.Header.Set("X-Test-Role", string(models.RoleAdmin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, "attachment; filename=school-sch-1.csv", resp.Header().Get("Content-Disposition"))
		require.Equal(t, "a,b\n", resp.Body.String())
	})

	t.Run("export unsupported format", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/schools/sch-1/report/export?format=docx", nil)
		req.Header.Set("X-Test-Role", string(models.RoleAdmin))
		require.Equal(t, http.StatusBadRequest, performRequest(router, req).Code)
	})
}

func TestReadinessReportsDegradedDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
		"redis":    PingFunc(func(ctx context.Context) error { return appErrors.ErrInternal }),
	}, nil)

	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), `"redis":"down"`)
	require.Contains(t, w.Body.String(), `"postgres":"up"`)

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
