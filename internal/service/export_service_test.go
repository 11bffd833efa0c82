package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
	appErrors "github.com/kokitones-gif/redrive-backend-sub000/pkg/errors"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/storage"
)

type exportLedgerMock struct {
	bookings []models.Booking
}

func (m *exportLedgerMock) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	return m.bookings, len(m.bookings), nil
}

func newTestArchive(t *testing.T, ttl time.Duration) *ExportArchive {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return &ExportArchive{
		Store:  store,
		Signer: storage.NewSigner("test-secret", ttl),
		TTL:    ttl,
	}
}

func TestExportServiceArchiveAndOpen(t *testing.T) {
	ledger := &exportLedgerMock{bookings: []models.Booking{{
		ID: "b1", InstructorID: "inst-1", StudentID: "stu-1",
		Date: time.Now(), Period: models.PeriodMorning,
		Status: models.BookingStatusConfirmed, CourseID: "course-9", Price: 45000,
	}}}
	svc := NewExportService(ledger, newTestArchive(t, time.Hour), zap.NewNop())

	link, err := svc.ArchiveLedger(context.Background(), "inst-1", time.Now(), time.Now().AddDate(0, 0, 7), ExportFormatCSV)
	require.NoError(t, err)
	require.NotEmpty(t, link.Token)
	assert.Contains(t, link.Filename, ".csv")
	assert.True(t, link.ExpiresAt.After(time.Now()))

	result, err := svc.OpenArchived(link.Token)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, link.Filename, result.Filename)
	assert.Contains(t, string(result.Payload), "course-9")
}

func TestExportServiceOpenArchivedRejectsForgedToken(t *testing.T) {
	svc := NewExportService(&exportLedgerMock{}, newTestArchive(t, time.Hour), zap.NewNop())

	_, err := svc.OpenArchived("forged.token.value")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestExportServiceArchiveRequiresArchive(t *testing.T) {
	svc := NewExportService(&exportLedgerMock{}, nil, zap.NewNop())

	_, err := svc.ArchiveLedger(context.Background(), "inst-1", time.Now(), time.Now(), ExportFormatCSV)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestExportServicePurgeExpired(t *testing.T) {
	archive := newTestArchive(t, time.Hour)
	svc := NewExportService(&exportLedgerMock{}, archive, zap.NewNop())

	require.NoError(t, archive.Store.Save("inst-1/stale.csv", []byte("stale")))

	// TTL of -1h makes every file stale immediately.
	archive.TTL = -time.Hour
	require.NoError(t, svc.PurgeExpired(context.Background()))

	_, err := archive.Store.Read("inst-1/stale.csv")
	require.Error(t, err)
}
