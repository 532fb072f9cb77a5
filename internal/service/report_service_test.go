package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/driving-school-ledger/internal/dto"
	"github.com/noah-isme/driving-school-ledger/internal/models"
	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
	"github.com/noah-isme/driving-school-ledger/pkg/export"
)

type summarizerStub struct {
	ledgers    []models.EnrollmentLedger
	lastFilter models.SchoolReportFilter
}

func (s *summarizerStub) SummarizeSchool(ctx context.Context, schoolID string, filter models.SchoolReportFilter) (*models.SchoolReport, error) {
	s.lastFilter = filter
	report := SummarizeSchool(schoolID, s.ledgers, filter, aggToday)
	return &report, nil
}

func (s *summarizerStub) StudentLedgers(ctx context.Context, studentID string) ([]models.EnrollmentLedger, error) {
	if studentID != "stu-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no enrollments")
	}
	return s.ledgers, nil
}

func (s *summarizerStub) Today() time.Time { return aggToday }

func reportLedgers() []models.EnrollmentLedger {
	ledger := sampleLedger()
	ledger.Enrollment.CategoryID = "cat-B"
	ledger.Payments = append(ledger.Payments, pay("p0", "i1", "enr-1", "0.01", "cash", time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)))
	// listed out of order on purpose
	ledger.Installments = []models.Installment{ledger.Installments[2], ledger.Installments[0], ledger.Installments[1]}
	return []models.EnrollmentLedger{ledger}
}

func newReportFixture(maxRows int) (*ReportService, *summarizerStub) {
	stub := &summarizerStub{ledgers: reportLedgers()}
	svc := NewReportService(stub, NewReportViewBuilder(maxRows), NewExportService(nil, nil, nil, nil), nil, nil)
	return svc, stub
}

func TestReportServiceSchoolReportSortsListings(t *testing.T) {
	svc, _ := newReportFixture(0)
	view, err := svc.SchoolReport(context.Background(), dto.SchoolReportQuery{SchoolID: "sch-1"})
	require.NoError(t, err)

	require.Len(t, view.Installments, 3)
	assert.Equal(t, []string{"i1", "i2", "i3"}, []string{view.Installments[0].ID, view.Installments[1].ID, view.Installments[2].ID})
	require.Len(t, view.Payments, 2)
	assert.Equal(t, "p1", view.Payments[0].ID)
	assert.Equal(t, "p0", view.Payments[1].ID)
	assert.False(t, view.Truncated)
}

func TestReportServiceCapsRows(t *testing.T) {
	svc, _ := newReportFixture(1)
	view, err := svc.SchoolReport(context.Background(), dto.SchoolReportQuery{SchoolID: "sch-1"})
	require.NoError(t, err)
	assert.Len(t, view.Installments, 1)
	assert.Len(t, view.Payments, 1)
	assert.True(t, view.Truncated)
}

func TestReportServiceParsesFilters(t *testing.T) {
	svc, stub := newReportFixture(0)
	_, err := svc.SchoolReport(context.Background(), dto.SchoolReportQuery{
		SchoolID: "sch-1", From: "2026-03-01", To: "2026-03-31", Status: "overdue", MinDaysOverdue: 5, Method: " cash ",
	})
	require.NoError(t, err)
	require.NotNil(t, stub.lastFilter.From)
	assert.Equal(t, day(2026, 3, 1), *stub.lastFilter.From)
	assert.Equal(t, day(2026, 3, 31), *stub.lastFilter.To)
	assert.Equal(t, models.InstallmentStatusOverdue, stub.lastFilter.Status)
	assert.Equal(t, "cash", stub.lastFilter.Method)

	cases := []dto.SchoolReportQuery{
		{SchoolID: "sch-1", From: "03/01/2026"},
		{SchoolID: "sch-1", Status: "LATE"},
		{SchoolID: "sch-1", MinDaysOverdue: -1},
		{SchoolID: "sch-1", From: "2026-04-01", To: "2026-03-01"},
		{SchoolID: ""},
	}
	for _, q := range cases {
		_, err := svc.SchoolReport(context.Background(), q)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), "%+v", q)
	}
}

func TestReportServiceExportCSV(t *testing.T) {
	svc, _ := newReportFixture(0)
	file, err := svc.ExportSchoolReport(context.Background(), dto.SchoolReportQuery{SchoolID: "sch-1", Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "school-sch-1-installments-2026-05-20.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Payload)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Student,Enrollment,Sequence,Due Date,Amount,Status,Overdue,Days Overdue", lines[0])
	assert.Equal(t, "stu-1,enr-1,2,2026-04-20,300.00,PENDING,yes,30", lines[2])
}

func TestReportServiceExportPaymentsAsXLSXAndPDF(t *testing.T) {
	svc, _ := newReportFixture(0)
	xlsx, err := svc.ExportSchoolReport(context.Background(), dto.SchoolReportQuery{SchoolID: "sch-1", Format: "xlsx", Dataset: "payments"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(xlsx.Filename, ".xlsx"))
	assert.True(t, bytes.HasPrefix(xlsx.Payload, []byte("PK")))

	pdf, err := svc.ExportSchoolReport(context.Background(), dto.SchoolReportQuery{SchoolID: "sch-1", Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, bytes.HasPrefix(pdf.Payload, []byte("%PDF")))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(nil, nil, nil, nil)
	_, err := svc.Render(export.Dataset{Headers: []string{"A"}}, "docx", "x", "X")
	assert.True(t, errors.Is(err, appErrors.ErrUnsupportedFormat))
}

func TestReportServiceStudentStatement(t *testing.T) {
	svc, _ := newReportFixture(0)
	statement, err := svc.StudentStatement(context.Background(), "stu-1")
	require.NoError(t, err)

	assert.Equal(t, "2026-05-20", statement.AsOf)
	assert.Equal(t, []string{"cat-B"}, statement.Categories)
	require.Len(t, statement.Overdue, 1)
	assert.Equal(t, "i2", statement.Overdue[0].ID)
	require.Len(t, statement.Upcoming, 1)
	assert.Equal(t, "i3", statement.Upcoming[0].ID)
	require.Len(t, statement.History, 2)
	assert.Equal(t, "p1", statement.History[0].ID)
	assert.Equal(t, "599.99", statement.Summary.Totals.Pending.String())

	_, err = svc.StudentStatement(context.Background(), "stu-404")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
