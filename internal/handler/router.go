package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/driving-school-ledger/internal/middleware"
	"github.com/noah-isme/driving-school-ledger/internal/models"
)

// Routes groups the handlers and guards mounted by RegisterRoutes.
type Routes struct {
	Ledger    *LedgerHandler
	Summaries *SummaryHandler
	Reports   *ReportHandler
	Auth      gin.HandlerFunc
	Audit     func(action, resource string) gin.HandlerFunc
	Logger    *zap.Logger
}

// RegisterRoutes mounts the ledger API under group. Mutations require
// SUPERADMIN, ADMIN or CASHIER; reads also allow STAFF, and a STUDENT may read
// its own summary and statement.
func RegisterRoutes(group *gin.RouterGroup, routes Routes) {
	if routes.Auth != nil {
		group.Use(routes.Auth)
	}
	audit := routes.Audit
	if audit == nil {
		audit = func(string, string) gin.HandlerFunc { return func(c *gin.Context) { c.Next() } }
	}

	writers := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleCashier)
	readers := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleCashier, models.RoleStaff)
	readersOrSelf := middleware.RBAC(
		string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleCashier), string(models.RoleStaff),
		middleware.RoleSelf,
	)

	enrollments := group.Group("/enrollments")
	enrollments.POST("", writers, audit(models.AuditActionEnroll, "enrollment"), routes.Ledger.Enroll)
	enrollments.POST("/:id/installments", writers, audit(models.AuditActionSchedule, "enrollment"), routes.Ledger.ScheduleInstallments)
	enrollments.GET("/:id/installments", readers, routes.Ledger.ListInstallments)
	enrollments.GET("/:id/payments", readers, routes.Ledger.ListPayments)
	enrollments.GET("/:id/summary", readers, routes.Summaries.Enrollment)

	group.POST("/installments/:id/payments", writers, audit(models.AuditActionApplyPayment, "installment"), routes.Ledger.ApplyPayment)
	group.DELETE("/payments/:id", writers, audit(models.AuditActionReversePayment, "payment"), routes.Ledger.ReversePayment)

	students := group.Group("/students")
	students.GET("/:id/summary", readersOrSelf, routes.Summaries.Student)
	students.GET("/:id/statement", readersOrSelf, routes.Reports.StudentStatement)

	schools := group.Group("/schools")
	schools.GET("/:id/report", readers, routes.Reports.SchoolReport)
	schools.GET("/:id/report/export", readers, audit(models.AuditActionExportReport, "school"), routes.Reports.ExportSchoolReport)

	if routes.Logger != nil {
		routes.Logger.Debug("ledger routes registered", zap.String("base", group.BasePath()))
	}
}
