package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/driving-school-ledger/internal/dto"
	"github.com/noah-isme/driving-school-ledger/internal/models"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
)

type schoolSummarizer interface {
	SummarizeSchool(ctx context.Context, schoolID string, filter models.SchoolReportFilter) (*models.SchoolReport, error)
	StudentLedgers(ctx context.Context, studentID string) ([]models.EnrollmentLedger, error)
	Today() time.Time
}

// ReportService serves school reports, their exports and student statements.
type ReportService struct {
	summaries schoolSummarizer
	builder   *ReportViewBuilder
	exporter  *ExportService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs the reporting layer.
func NewReportService(summaries schoolSummarizer, builder *ReportViewBuilder, exporter *ExportService, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = NewReportViewBuilder(0)
	}
	if exporter == nil {
		exporter = NewExportService(logger, nil, nil, nil)
	}
	return &ReportService{summaries: summaries, builder: builder, exporter: exporter, validator: validate, logger: logger}
}

// SchoolReport returns the filtered, sorted report view of a school.
func (s *ReportService) SchoolReport(ctx context.Context, query dto.SchoolReportQuery) (*dto.SchoolReportView, error) {
	filter, err := s.parseQuery(query)
	if err != nil {
		return nil, err
	}
	report, err := s.summaries.SummarizeSchool(ctx, query.SchoolID, filter)
	if err != nil {
		return nil, err
	}
	view := s.builder.SchoolView(*report)
	return &view, nil
}

// ExportSchoolReport renders the installment or payment listing of a school
// report as CSV, PDF or XLSX.
func (s *ReportService) ExportSchoolReport(ctx context.Context, query dto.SchoolReportQuery) (*dto.ExportFile, error) {
	view, err := s.SchoolReport(ctx, query)
	if err != nil {
		return nil, err
	}

	dataset := strings.ToLower(query.Dataset)
	if dataset == "" {
		dataset = dto.ReportDatasetInstallments
	}
	base := fmt.Sprintf("school-%s-%s-%s", query.SchoolID, dataset, view.AsOf)
	title := fmt.Sprintf("%s%s %s", strings.ToUpper(dataset[:1]), dataset[1:], view.AsOf)

	var file *dto.ExportFile
	switch dataset {
	case dto.ReportDatasetPayments:
		file, err = s.exporter.Render(s.builder.PaymentDataset(*view), query.Format, base, title)
	default:
		file, err = s.exporter.Render(s.builder.InstallmentDataset(*view), query.Format, base, title)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("school report exported",
		zap.String("school_id", query.SchoolID),
		zap.String("dataset", dataset),
		zap.String("format", query.Format),
		zap.Int("bytes", len(file.Payload)),
	)
	return file, nil
}

// StudentStatement returns a student's summary alongside open installments
// and payment history.
func (s *ReportService) StudentStatement(ctx context.Context, studentID string) (*dto.StudentStatement, error) {
	ledgers, err := s.summaries.StudentLedgers(ctx, studentID)
	if err != nil {
		return nil, err
	}
	today := s.summaries.Today()
	summary := SummarizeStudent(studentID, ledgers, today)
	statement := s.builder.StudentStatement(summary, ledgers, today)
	return &statement, nil
}

func (s *ReportService) parseQuery(query dto.SchoolReportQuery) (models.SchoolReportFilter, error) {
	query.Status = strings.ToUpper(strings.TrimSpace(query.Status))
	query.Format = strings.ToLower(strings.TrimSpace(query.Format))
	if err := s.validator.Struct(query); err != nil {
		return models.SchoolReportFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report query")
	}

	filter := models.SchoolReportFilter{
		Status:         models.InstallmentStatus(query.Status),
		MinDaysOverdue: query.MinDaysOverdue,
		Method:         strings.TrimSpace(query.Method),
	}
	if query.From != "" {
		from, _ := time.Parse("2006-01-02", query.From)
		filter.From = &from
	}
	if query.To != "" {
		to, _ := time.Parse("2006-01-02", query.To)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return models.SchoolReportFilter{}, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return filter, nil
}
