package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/driving-school-ledger/internal/dto"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
	"github.com/noah-isme/driving-school-ledger/pkg/response"
)

type reportService interface {
	SchoolReport(ctx context.Context, query dto.SchoolReportQuery) (*dto.SchoolReportView, error)
	ExportSchoolReport(ctx context.Context, query dto.SchoolReportQuery) (*dto.ExportFile, error)
	StudentStatement(ctx context.Context, studentID string) (*dto.StudentStatement, error)
}

// ReportHandler exposes school reports, exports and student statements.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// SchoolReport godoc
// @Summary School financial report
// @Tags Reports
// @Produce json
// @Param id path string true "School ID"
// @Param from query string false "Payments from (YYYY-MM-DD)"
// @Param to query string false "Payments to (YYYY-MM-DD)"
// @Param status query string false "PENDING, PARTIALLY_PAID, PAID or OVERDUE"
// @Param min_days_overdue query int false "Minimum days overdue"
// @Param method query string false "Payment method"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schools/{id}/report [get]
func (h *ReportHandler) SchoolReport(c *gin.Context) {
	query, ok := bindReportQuery(c)
	if !ok {
		return
	}
	start := time.Now()
	view, err := h.reports.SchoolReport(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"processing_time_ms": time.Since(start).Milliseconds()}
	response.JSON(c, http.StatusOK, view, nil, meta)
}

// ExportSchoolReport godoc
// @Summary Export school report rows
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "School ID"
// @Param format query string false "csv, pdf or xlsx"
// @Param dataset query string false "installments or payments"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /schools/{id}/report/export [get]
func (h *ReportHandler) ExportSchoolReport(c *gin.Context) {
	query, ok := bindReportQuery(c)
	if !ok {
		return
	}
	file, err := h.reports.ExportSchoolReport(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

// StudentStatement godoc
// @Summary Student account statement
// @Tags Reports
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/statement [get]
func (h *ReportHandler) StudentStatement(c *gin.Context) {
	statement, err := h.reports.StudentStatement(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statement, nil)
}

func bindReportQuery(c *gin.Context) (dto.SchoolReportQuery, bool) {
	var query dto.SchoolReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid report query"))
		return query, false
	}
	query.SchoolID = c.Param("id")
	return query, true
}
