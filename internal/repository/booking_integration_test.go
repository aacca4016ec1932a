//go:build integration

package repository_test

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nurpe/freight-booking/internal/db"
	"github.com/nurpe/freight-booking/internal/model"
	"github.com/nurpe/freight-booking/internal/repository"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("booking_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_pass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres testcontainer: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		log.Fatalf("failed to get connection string from container: %v", err)
	}

	testDB, err = gorm.Open(gormpostgres.Open(connStr), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		log.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(testDB); err != nil {
		_ = pgContainer.Terminate(ctx)
		log.Fatalf("failed to migrate: %v", err)
	}

	code := m.Run()

	if err := pgContainer.Terminate(ctx); err != nil {
		log.Printf("failed to terminate postgres container: %v", err)
	}
	os.Exit(code)
}

func insertUser(t *testing.T, userType model.UserType) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := testDB.Exec(`INSERT INTO users (id, email, company_name, user_type) VALUES (?, ?, ?, ?)`,
		id, id.String()+"@example.com", "Company "+id.String()[:8], string(userType)).Error
	require.NoError(t, err)
	return id
}

func postShipment(t *testing.T, repo *repository.ShipmentRepository, code string, shipperID uuid.UUID) *model.Shipment {
	t.Helper()
	created, err := repo.CreateShipment(context.Background(), model.Shipment{
		ShipmentNumber: code,
		ShipmentType:   "FTL",
		PickupDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DeliveryDate:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		Origin:         model.Address{Address: "1 Main St", City: "Dallas", State: "TX"},
		Destination:    model.Address{Address: "9 Elm St", City: "Denver", State: "CO"},
		Distance:       250,
		EquipmentType:  "Dry Van",
		BaseRate:       model.BaseRate{Amount: 1000, Currency: "USD", RateType: "flat"},
		TotalRate:      1075,
		AccessorialPricing: model.PricingTable{
			model.CategoryPickup: {"liftgate": 75.0},
		},
		Accessorials: model.AccessorialSelection{
			model.CategoryPickup: {"liftgate": true},
		},
		ShipperID:  shipperID,
		PostedByID: shipperID,
	})
	require.NoError(t, err)
	return created
}

func TestBook_ConcurrentCarriersExactlyOneWins(t *testing.T) {
	repo := repository.NewShipmentRepository(testDB)
	shipper := insertUser(t, model.UserTypeShipper)
	postShipment(t, repo, "F-40001", shipper)

	const carriers = 12
	ids := make([]uuid.UUID, carriers)
	for i := range ids {
		ids[i] = insertUser(t, model.UserTypeCarrier)
	}

	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		errs    atomic.Int32
		winner  atomic.Value
		release = make(chan struct{})
	)
	for _, id := range ids {
		wg.Add(1)
		go func(carrierID uuid.UUID) {
			defer wg.Done()
			<-release
			ok, err := repo.Book(context.Background(), "F-40001", carrierID, time.Now().UTC(), nil)
			if err != nil {
				errs.Add(1)
				return
			}
			if ok {
				wins.Add(1)
				winner.Store(carrierID)
			}
		}(id)
	}
	close(release)
	wg.Wait()

	require.Zero(t, errs.Load())
	require.EqualValues(t, 1, wins.Load())

	stored, err := repo.GetByNumber(context.Background(), "F-40001")
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentStatusBooked, stored.Status)
	require.NotNil(t, stored.CarrierID)
	assert.Equal(t, winner.Load().(uuid.UUID), *stored.CarrierID)
	assert.Equal(t, stored.CarrierID, stored.AssignedCarrierID)
	assert.Equal(t, stored.CarrierID, stored.BookedByID)
}

func TestCancel_ClearsCarrierAndBlocksRebooking(t *testing.T) {
	repo := repository.NewShipmentRepository(testDB)
	shipper := insertUser(t, model.UserTypeShipper)
	carrier := insertUser(t, model.UserTypeCarrier)
	postShipment(t, repo, "F-40002", shipper)

	ok, err := repo.Book(context.Background(), "F-40002", carrier, time.Now().UTC(), nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Cancel(context.Background(), "F-40002", model.ShipmentStatusBooked, shipper, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := repo.GetByNumber(context.Background(), "F-40002")
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentStatusCancelled, stored.Status)
	assert.Nil(t, stored.CarrierID)
	assert.Nil(t, stored.AssignedCarrierID)

	ok, err = repo.Book(context.Background(), "F-40002", carrier, time.Now().UTC(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateShipment_DuplicateNumber(t *testing.T) {
	repo := repository.NewShipmentRepository(testDB)
	shipper := insertUser(t, model.UserTypeShipper)
	postShipment(t, repo, "F-40003", shipper)

	_, err := repo.CreateShipment(context.Background(), model.Shipment{
		ShipmentNumber: "F-40003",
		ShipmentType:   "FTL",
		PickupDate:     time.Now().UTC(),
		DeliveryDate:   time.Now().UTC(),
		EquipmentType:  "Reefer",
		ShipperID:      shipper,
		PostedByID:     shipper,
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestAttachRateConfirmation_RetryLeavesOneDocument(t *testing.T) {
	shipments := repository.NewShipmentRepository(testDB)
	documents := repository.NewDocumentRepository(testDB)
	shipper := insertUser(t, model.UserTypeShipper)
	carrier := insertUser(t, model.UserTypeCarrier)
	created := postShipment(t, shipments, "F-40004", shipper)

	ok, err := shipments.Book(context.Background(), "F-40004", carrier, time.Now().UTC(), nil)
	require.NoError(t, err)
	require.True(t, ok)

	doc := model.Document{
		DownloadURL: "rate-confirmations/F-40004.pdf",
		Description: "Rate Confirmation For F-40004",
		UploadDate:  time.Now().UTC(),
	}
	first, err := documents.AttachRateConfirmation(context.Background(), created.ID, carrier, doc)
	require.NoError(t, err)
	second, err := documents.AttachRateConfirmation(context.Background(), created.ID, carrier, doc)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	linked, err := documents.ListShipmentDocuments(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, linked, 1)

	mine, err := documents.ListUserDocuments(context.Background(), carrier)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	stored, err := shipments.GetByNumber(context.Background(), "F-40004")
	require.NoError(t, err)
	require.NotNil(t, stored.RateConfirmationURL)
	assert.Equal(t, doc.DownloadURL, *stored.RateConfirmationURL)
	assert.Equal(t, []uuid.UUID{first.ID}, stored.DocumentIDs)
}
