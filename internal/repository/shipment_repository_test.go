package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nurpe/freight-booking/internal/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	database, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	return database, mock
}

func TestShipmentRepository_BookIsConditional(t *testing.T) {
	testCases := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "row matched", affected: 1, want: true},
		{name: "already taken", affected: 0, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			database, mock := newMockDB(t)
			repo := NewShipmentRepository(database)

			mock.ExpectExec(`UPDATE shipments\s+SET\s+status = 'Booked'.*WHERE shipment_number = \$7\s+AND status = 'Available'\s+AND carrier_id IS NULL\s+AND assigned_carrier_id IS NULL`).
				WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "F-12345").
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			rate := 4.3
			ok, err := repo.Book(context.Background(), "F-12345", uuid.New(), time.Now().UTC(), &rate)

			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestShipmentRepository_BookPropagatesErrors(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewShipmentRepository(database)

	mock.ExpectExec(`UPDATE shipments`).WillReturnError(errors.New("connection reset"))

	ok, err := repo.Book(context.Background(), "F-12345", uuid.New(), time.Now().UTC(), nil)

	require.Error(t, err)
	assert.False(t, ok)
}

func TestShipmentRepository_CancelGuardsObservedStatus(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewShipmentRepository(database)

	mock.ExpectExec(`UPDATE shipments\s+SET\s+status = 'Cancelled'.*carrier_id = NULL,\s+assigned_carrier_id = NULL.*AND status = \$5`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "F-12345", "Booked").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Cancel(context.Background(), "F-12345", model.ShipmentStatusBooked, uuid.New(), time.Now().UTC())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepository_AdvanceStatus(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewShipmentRepository(database)

	mock.ExpectExec(`UPDATE shipments\s+SET\s+status = \$1`).
		WithArgs("In Transit", sqlmock.AnyArg(), "F-12345", "Booked").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.AdvanceStatus(context.Background(), "F-12345", model.ShipmentStatusBooked, model.ShipmentStatusInTransit, time.Now().UTC())

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_AttachRateConfirmation(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewDocumentRepository(database)

	docID := uuid.New()
	uploaded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := "rate-confirmations/F-12345.pdf"

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO documents .* ON CONFLICT \(download_url\) DO UPDATE`).
		WithArgs(key, "Rate Confirmation F-12345", uploaded).
		WillReturnRows(sqlmock.NewRows([]string{"id", "download_url", "description", "upload_date"}).
			AddRow(docID.String(), key, "Rate Confirmation F-12345", uploaded))
	mock.ExpectExec(`INSERT INTO shipment_documents .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_documents .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE shipments\s+SET rate_confirmation_url = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc, err := repo.AttachRateConfirmation(context.Background(), uuid.New(), uuid.New(), model.Document{
		DownloadURL: key,
		Description: "Rate Confirmation F-12345",
		UploadDate:  uploaded,
	})

	require.NoError(t, err)
	assert.Equal(t, docID, doc.ID)
	assert.Equal(t, key, doc.DownloadURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_AttachRollsBackOnLinkFailure(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewDocumentRepository(database)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO documents`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "download_url", "description", "upload_date"}).
			AddRow(uuid.NewString(), "rate-confirmations/F-12345.pdf", "", time.Now().UTC()))
	mock.ExpectExec(`INSERT INTO shipment_documents`).
		WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	_, err := repo.AttachRateConfirmation(context.Background(), uuid.New(), uuid.New(), model.Document{
		DownloadURL: "rate-confirmations/F-12345.pdf",
		UploadDate:  time.Now().UTC(),
	})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
