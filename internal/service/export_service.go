package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/driving-school-ledger/internal/dto"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
	"github.com/noah-isme/driving-school-ledger/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportService renders datasets into downloadable files.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	xlsx   xlsxRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the pkg/export implementations.
func NewExportService(logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{csv: csv, pdf: pdf, xlsx: xlsx, logger: logger}
}

// Render produces a file named after base in the requested format.
func (s *ExportService) Render(dataset export.Dataset, format, base, title string) (*dto.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = dto.ExportFormatCSV
	}

	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case dto.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case dto.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	case dto.ExportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, title)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		s.logger.Error("render export failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &dto.ExportFile{
		Filename:    fmt.Sprintf("%s.%s", base, format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}
