package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nurpe/freight-booking/internal/model"
)

type ShipmentRepository struct {
	db *gorm.DB
}

func NewShipmentRepository(db *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

type shipmentRow struct {
	ID                  uuid.UUID
	ShipmentNumber      string
	ShipmentType        string
	Status              string
	AccountID           *uuid.UUID
	PickupDate          time.Time
	DeliveryDate        time.Time
	OriginAddress       string
	OriginCity          string
	OriginState         string
	OriginZipcode       string
	OriginCountry       string
	DestinationAddress  string
	DestinationCity     string
	DestinationState    string
	DestinationZipcode  string
	DestinationCountry  string
	Distance            float64
	EquipmentType       string
	Commodity           string
	Weight              float64
	BaseRateAmount      float64
	BaseRateCurrency    string
	BaseRateType        string
	TotalRate           float64
	RatePerMile         *float64
	Accessorials        datatypes.JSONType[model.AccessorialSelection]
	AccessorialPricing  datatypes.JSONType[model.PricingTable]
	SpecialInstructions string
	Notes               string
	ShipperID           uuid.UUID
	PostedByID          uuid.UUID
	CarrierID           *uuid.UUID
	AssignedCarrierID   *uuid.UUID
	BookedByID          *uuid.UUID
	BookedAt            *time.Time
	CancelledByID       *uuid.UUID
	CancelledAt         *time.Time
	RateConfirmationURL *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const shipmentColumns = `
	id,
	shipment_number,
	shipment_type,
	status,
	account_id,
	pickup_date,
	delivery_date,
	origin_address,
	origin_city,
	origin_state,
	origin_zipcode,
	origin_country,
	destination_address,
	destination_city,
	destination_state,
	destination_zipcode,
	destination_country,
	distance,
	equipment_type,
	commodity,
	weight,
	base_rate_amount,
	base_rate_currency,
	base_rate_type,
	total_rate,
	rate_per_mile,
	accessorials,
	accessorial_pricing,
	special_instructions,
	notes,
	shipper_id,
	posted_by_id,
	carrier_id,
	assigned_carrier_id,
	booked_by_id,
	booked_at,
	cancelled_by_id,
	cancelled_at,
	rate_confirmation_url,
	created_at,
	updated_at
`

func (r shipmentRow) toModel() model.Shipment {
	return model.Shipment{
		ID:             r.ID,
		ShipmentNumber: r.ShipmentNumber,
		ShipmentType:   r.ShipmentType,
		Status:         model.ShipmentStatus(r.Status),
		AccountID:      r.AccountID,
		PickupDate:     r.PickupDate,
		DeliveryDate:   r.DeliveryDate,
		Origin: model.Address{
			Address: r.OriginAddress,
			City:    r.OriginCity,
			State:   r.OriginState,
			Zipcode: r.OriginZipcode,
			Country: r.OriginCountry,
		},
		Destination: model.Address{
			Address: r.DestinationAddress,
			City:    r.DestinationCity,
			State:   r.DestinationState,
			Zipcode: r.DestinationZipcode,
			Country: r.DestinationCountry,
		},
		Distance:      r.Distance,
		EquipmentType: r.EquipmentType,
		Commodity:     r.Commodity,
		Weight:        r.Weight,
		BaseRate: model.BaseRate{
			Amount:   r.BaseRateAmount,
			Currency: r.BaseRateCurrency,
			RateType: r.BaseRateType,
		},
		TotalRate:           r.TotalRate,
		RatePerMile:         r.RatePerMile,
		Accessorials:        r.Accessorials.Data(),
		AccessorialPricing:  r.AccessorialPricing.Data(),
		SpecialInstructions: r.SpecialInstructions,
		Notes:               r.Notes,
		ShipperID:           r.ShipperID,
		PostedByID:          r.PostedByID,
		CarrierID:           r.CarrierID,
		AssignedCarrierID:   r.AssignedCarrierID,
		BookedByID:          r.BookedByID,
		BookedAt:            r.BookedAt,
		CancelledByID:       r.CancelledByID,
		CancelledAt:         r.CancelledAt,
		RateConfirmationURL: r.RateConfirmationURL,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func (r *ShipmentRepository) ShipmentNumberExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.WithContext(ctx).Raw(`
		SELECT EXISTS (SELECT 1 FROM shipments WHERE shipment_number = ?)
	`, code).Scan(&exists).Error
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CreateShipment inserts s. A clash on the shipment number surfaces as
// gorm.ErrDuplicatedKey.
func (r *ShipmentRepository) CreateShipment(ctx context.Context, s model.Shipment) (*model.Shipment, error) {
	if s.Accessorials == nil {
		s.Accessorials = model.AccessorialSelection{}
	}
	if s.AccessorialPricing == nil {
		s.AccessorialPricing = model.PricingTable{}
	}

	var saved struct {
		ID        uuid.UUID
		CreatedAt time.Time
		UpdatedAt time.Time
	}
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO shipments (
			shipment_number,
			shipment_type,
			status,
			account_id,
			pickup_date,
			delivery_date,
			origin_address,
			origin_city,
			origin_state,
			origin_zipcode,
			origin_country,
			destination_address,
			destination_city,
			destination_state,
			destination_zipcode,
			destination_country,
			distance,
			equipment_type,
			commodity,
			weight,
			base_rate_amount,
			base_rate_currency,
			base_rate_type,
			total_rate,
			rate_per_mile,
			accessorials,
			accessorial_pricing,
			special_instructions,
			notes,
			shipper_id,
			posted_by_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at
	`,
		s.ShipmentNumber,
		s.ShipmentType,
		string(model.ShipmentStatusAvailable),
		s.AccountID,
		s.PickupDate,
		s.DeliveryDate,
		s.Origin.Address,
		s.Origin.City,
		s.Origin.State,
		s.Origin.Zipcode,
		s.Origin.Country,
		s.Destination.Address,
		s.Destination.City,
		s.Destination.State,
		s.Destination.Zipcode,
		s.Destination.Country,
		s.Distance,
		s.EquipmentType,
		s.Commodity,
		s.Weight,
		s.BaseRate.Amount,
		s.BaseRate.Currency,
		s.BaseRate.RateType,
		s.TotalRate,
		s.RatePerMile,
		datatypes.NewJSONType(s.Accessorials),
		datatypes.NewJSONType(s.AccessorialPricing),
		s.SpecialInstructions,
		s.Notes,
		s.ShipperID,
		s.PostedByID,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}

	s.ID = saved.ID
	s.Status = model.ShipmentStatusAvailable
	s.CreatedAt = saved.CreatedAt
	s.UpdatedAt = saved.UpdatedAt
	return &s, nil
}

func (r *ShipmentRepository) GetByNumber(ctx context.Context, code string) (*model.Shipment, error) {
	var row shipmentRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT`+shipmentColumns+`
		FROM shipments
		WHERE shipment_number = ?
		LIMIT 1
	`, code).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	shipment := row.toModel()
	var documentIDs []uuid.UUID
	if err := r.db.WithContext(ctx).Raw(`
		SELECT document_id
		FROM shipment_documents
		WHERE shipment_id = ?
		ORDER BY position ASC
	`, row.ID).Scan(&documentIDs).Error; err != nil {
		return nil, err
	}
	shipment.DocumentIDs = documentIDs
	return &shipment, nil
}

// Book moves an Available, carrier-less shipment to Booked in one conditional
// statement. It reports false when no row matched, which means the shipment
// is missing or another request got there first.
func (r *ShipmentRepository) Book(ctx context.Context, code string, carrierID uuid.UUID, at time.Time, ratePerMile *float64) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE shipments
		SET
			status = 'Booked',
			booked_at = ?,
			booked_by_id = ?,
			carrier_id = ?,
			assigned_carrier_id = ?,
			rate_per_mile = COALESCE(?, rate_per_mile),
			updated_at = ?
		WHERE shipment_number = ?
			AND status = 'Available'
			AND carrier_id IS NULL
			AND assigned_carrier_id IS NULL
	`, at, carrierID, carrierID, carrierID, ratePerMile, at, code)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Cancel moves a shipment from the observed status to Cancelled and clears
// both carrier references in the same statement.
func (r *ShipmentRepository) Cancel(ctx context.Context, code string, from model.ShipmentStatus, actorID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE shipments
		SET
			status = 'Cancelled',
			cancelled_by_id = ?,
			cancelled_at = ?,
			carrier_id = NULL,
			assigned_carrier_id = NULL,
			updated_at = ?
		WHERE shipment_number = ?
			AND status = ?
	`, actorID, at, at, code, string(from))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AdvanceStatus applies a forward transition between two carrier-bearing
// statuses, guarded on the observed status.
func (r *ShipmentRepository) AdvanceStatus(ctx context.Context, code string, from, to model.ShipmentStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE shipments
		SET
			status = ?,
			updated_at = ?
		WHERE shipment_number = ?
			AND status = ?
	`, string(to), at, code, string(from))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListBookedByCarrier returns shipments the carrier booked within [from, to).
func (r *ShipmentRepository) ListBookedByCarrier(ctx context.Context, carrierID uuid.UUID, from, to time.Time) ([]model.Shipment, error) {
	var rows []shipmentRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT`+shipmentColumns+`
		FROM shipments
		WHERE booked_by_id = ?
			AND booked_at >= ?
			AND booked_at < ?
		ORDER BY booked_at ASC
	`, carrierID, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	shipments := make([]model.Shipment, 0, len(rows))
	for _, row := range rows {
		shipments = append(shipments, row.toModel())
	}
	return shipments, nil
}
