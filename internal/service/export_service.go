package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
	appErrors "github.com/kokitones-gif/redrive-backend-sub000/pkg/errors"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/export"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/storage"
)

// ExportFormat selects the ledger export encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportLedger interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
}

// ExportArchive couples the on-disk store with the download-link signer.
// Archived files live at most TTL; tokens expire on the same clock.
type ExportArchive struct {
	Store  *storage.FileStore
	Signer *storage.Signer
	TTL    time.Duration
}

// ExportService renders an instructor's booking ledger as CSV or PDF, either
// streamed inline or archived behind a signed download link.
type ExportService struct {
	bookings exportLedger
	archive  *ExportArchive
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService constructs the service. A nil archive disables link
// delivery; inline rendering still works.
func NewExportService(bookings exportLedger, archive *ExportArchive, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		bookings: bookings,
		archive:  archive,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// ExportResult carries rendered bytes plus HTTP metadata.
type ExportResult struct {
	ContentType string
	Filename    string
	Payload     []byte
}

var ledgerHeaders = []string{"Date", "Period", "Status", "Student", "Time", "Course", "Price", "Meeting Point"}

// RenderLedger exports every booking on one instructor's calendar between two
// dates.
func (s *ExportService) RenderLedger(ctx context.Context, instructorID string, from, to time.Time, format ExportFormat) (*ExportResult, error) {
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	filter := models.BookingFilter{
		InstructorID: instructorID,
		StartDate:    &from,
		EndDate:      &to,
		Page:         1,
		PageSize:     10000,
	}
	bookings, _, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}

	dataset := export.Dataset{Headers: ledgerHeaders, Rows: make([]map[string]string, 0, len(bookings))}
	for _, b := range bookings {
		confirmedAt := ""
		if b.ConfirmedTime != nil {
			confirmedAt = b.ConfirmedTime.Format("15:04")
		}
		meetingPoint := ""
		if b.MeetingPoint != nil {
			meetingPoint = *b.MeetingPoint
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":          b.Date.Format(time.DateOnly),
			"Period":        string(b.Period),
			"Status":        string(b.Status),
			"Student":       b.StudentID,
			"Time":          confirmedAt,
			"Course":        b.CourseID,
			"Price":         strconv.FormatInt(b.Price, 10),
			"Meeting Point": meetingPoint,
		})
	}

	stamp := time.Now().UTC().Format("20060102")
	switch format {
	case ExportFormatPDF:
		payload, err := s.pdf.Render(dataset, "Lesson bookings")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("bookings-%s.pdf", stamp),
			Payload:     payload,
		}, nil
	default:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("bookings-%s.csv", stamp),
			Payload:     payload,
		}, nil
	}
}

// ExportLink references an archived export retrievable via a signed token.
type ExportLink struct {
	Token     string    `json:"token"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ArchiveLedger renders the ledger, stores the file and returns a signed
// download link instead of the raw bytes.
func (s *ExportService) ArchiveLedger(ctx context.Context, instructorID string, from, to time.Time, format ExportFormat) (*ExportLink, error) {
	if s.archive == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "link delivery is not enabled")
	}

	result, err := s.RenderLedger(ctx, instructorID, from, to, format)
	if err != nil {
		return nil, err
	}

	// Segment by instructor and salt with a UUID so repeated exports on the
	// same day never collide.
	name := path.Join(instructorID, uuid.NewString(), result.Filename)
	if err := s.archive.Store.Save(name, result.Payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive export")
	}

	token, expiresAt, err := s.archive.Signer.Sign(name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	s.logger.Sugar().Infow("export archived", "instructor_id", instructorID, "file", result.Filename, "expires_at", expiresAt)
	return &ExportLink{Token: token, Filename: result.Filename, ExpiresAt: expiresAt}, nil
}

// OpenArchived validates a download token and loads the archived file.
func (s *ExportService) OpenArchived(token string) (*ExportResult, error) {
	if s.archive == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "link delivery is not enabled")
	}

	name, err := s.archive.Signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrExpiredToken) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "download link expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid download link")
	}

	payload, err := s.archive.Store.Read(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export")
	}

	contentType := "text/csv"
	if strings.HasSuffix(name, ".pdf") {
		contentType = "application/pdf"
	}
	return &ExportResult{ContentType: contentType, Filename: path.Base(name), Payload: payload}, nil
}

// PurgeExpired drops archived exports older than the link TTL.
func (s *ExportService) PurgeExpired(context.Context) error {
	if s.archive == nil {
		return nil
	}
	removed, err := s.archive.Store.Sweep(s.archive.TTL)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Sugar().Infow("expired exports purged", "removed", removed)
	}
	return nil
}
