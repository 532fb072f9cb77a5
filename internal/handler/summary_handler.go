package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/driving-school-ledger/internal/models"
	"github.com/noah-isme/driving-school-ledger/pkg/response"
)

type summaryService interface {
	SummarizeEnrollment(ctx context.Context, enrollmentID string) (*models.FinancialSummary, error)
	SummarizeStudent(ctx context.Context, studentID string) (*models.StudentFinancialSummary, error)
}

// SummaryHandler serves derived financial summaries.
type SummaryHandler struct {
	summaries summaryService
}

// NewSummaryHandler constructs the handler.
func NewSummaryHandler(summaries summaryService) *SummaryHandler {
	return &SummaryHandler{summaries: summaries}
}

// Enrollment godoc
// @Summary Enrollment financial summary
// @Tags Summaries
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/summary [get]
func (h *SummaryHandler) Enrollment(c *gin.Context) {
	summary, err := h.summaries.SummarizeEnrollment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Student godoc
// @Summary Student financial summary across enrollments
// @Tags Summaries
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/summary [get]
func (h *SummaryHandler) Student(c *gin.Context) {
	summary, err := h.summaries.SummarizeStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
