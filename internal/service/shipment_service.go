package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/freight-booking/internal/model"
	"github.com/nurpe/freight-booking/internal/pricing"
	"github.com/nurpe/freight-booking/internal/shipmentno"
)

const maxInsertAttempts = 3

type ShipmentWriter interface {
	CreateShipment(ctx context.Context, s model.Shipment) (*model.Shipment, error)
	GetByNumber(ctx context.Context, code string) (*model.Shipment, error)
}

type AccountReader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
}

type ShipmentDocumentLister interface {
	ListShipmentDocuments(ctx context.Context, shipmentID uuid.UUID) ([]model.Document, error)
}

type NumberGenerator interface {
	Generate(ctx context.Context) (string, error)
}

type ShipmentService struct {
	shipments ShipmentWriter
	accounts  AccountReader
	users     UserStore
	documents ShipmentDocumentLister
	numbers   NumberGenerator
	log       zerolog.Logger
}

type CreateShipmentInput struct {
	Principal           model.Principal
	ShipmentType        string
	EquipmentType       string
	PickupDate          time.Time
	DeliveryDate        time.Time
	Origin              model.Address
	Destination         model.Address
	Distance            float64
	BaseRate            model.BaseRate
	Accessorials        model.AccessorialSelection
	AccessorialPricing  model.PricingTable
	AccountID           *uuid.UUID
	Commodity           string
	Weight              float64
	SpecialInstructions string
	Notes               string
}

// ShipmentView is a persisted shipment as shown back to users. Totals use
// the flat-sum rule over the shipment's own price table.
type ShipmentView struct {
	Shipment                model.Shipment   `json:"shipment"`
	Shipper                 *model.User      `json:"shipper"`
	PostedBy                *model.User      `json:"postedBy"`
	Carrier                 *model.User      `json:"carrier"`
	BookedBy                *model.User      `json:"bookedBy"`
	AccessorialPricingTotal float64          `json:"accessorialPricingTotal"`
	TotalRate               float64          `json:"totalRate"`
	Documents               []model.Document `json:"documents"`
}

func NewShipmentService(
	shipments ShipmentWriter,
	accounts AccountReader,
	users UserStore,
	documents ShipmentDocumentLister,
	numbers NumberGenerator,
	log zerolog.Logger,
) *ShipmentService {
	return &ShipmentService{
		shipments: shipments,
		accounts:  accounts,
		users:     users,
		documents: documents,
		numbers:   numbers,
		log:       log,
	}
}

func (s *ShipmentService) Create(ctx context.Context, input CreateShipmentInput) (*model.Shipment, error) {
	if !input.Principal.CanPost() {
		return nil, fmt.Errorf("%w: only shippers can post shipments", ErrPermissionDenied)
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	table := input.AccessorialPricing.Clone()
	if input.AccountID != nil {
		account, err := s.accounts.GetAccount(ctx, *input.AccountID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: account %s", ErrNotFound, input.AccountID)
			}
			return nil, err
		}
		table = account.AccessorialPricing.Clone()
	}
	if err := validatePricingTable(table); err != nil {
		return nil, err
	}

	selection := input.Accessorials.Clone()
	total := pricing.ComputeTotal(decimal.NewFromFloat(input.BaseRate.Amount), table, selection)

	shipment := model.Shipment{
		ShipmentType:        strings.TrimSpace(input.ShipmentType),
		Status:              model.ShipmentStatusAvailable,
		AccountID:           input.AccountID,
		PickupDate:          input.PickupDate,
		DeliveryDate:        input.DeliveryDate,
		Origin:              input.Origin,
		Destination:         input.Destination,
		Distance:            input.Distance,
		EquipmentType:       strings.TrimSpace(input.EquipmentType),
		Commodity:           input.Commodity,
		Weight:              input.Weight,
		BaseRate:            normalizeBaseRate(input.BaseRate),
		TotalRate:           total.InexactFloat64(),
		Accessorials:        selection,
		AccessorialPricing:  table,
		SpecialInstructions: input.SpecialInstructions,
		Notes:               input.Notes,
		ShipperID:           input.Principal.UserID,
		PostedByID:          input.Principal.UserID,
	}
	if rate, ok := pricing.RatePerMile(total, decimal.NewFromFloat(input.Distance)); ok {
		v := rate.InexactFloat64()
		shipment.RatePerMile = &v
	}

	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		code, err := s.numbers.Generate(ctx)
		if err != nil {
			if errors.Is(err, shipmentno.ErrExhausted) {
				return nil, fmt.Errorf("%w: %v", ErrGenerationExhausted, err)
			}
			return nil, err
		}
		shipment.ShipmentNumber = code

		created, err := s.shipments.CreateShipment(ctx, shipment)
		if err == nil {
			s.log.Info().
				Str("shipment", code).
				Str("actor", input.Principal.UserID.String()).
				Float64("total_rate", created.TotalRate).
				Msg("shipment posted")
			return created, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("create shipment: %w", err)
		}
		s.log.Warn().Str("shipment", code).Int("attempt", attempt).Msg("shipment number taken on insert")
	}
	return nil, fmt.Errorf("%w: %d inserts collided", ErrGenerationExhausted, maxInsertAttempts)
}

func (s *ShipmentService) Get(ctx context.Context, code string) (*ShipmentView, error) {
	if !shipmentno.Valid(code) {
		return nil, fmt.Errorf("%w: shipment %s", ErrNotFound, code)
	}
	shipment, err := s.shipments.GetByNumber(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: shipment %s", ErrNotFound, code)
		}
		return nil, err
	}

	ids := []uuid.UUID{shipment.ShipperID, shipment.PostedByID}
	if carrier := shipment.Carrier(); carrier != nil {
		ids = append(ids, *carrier)
	}
	if shipment.BookedByID != nil {
		ids = append(ids, *shipment.BookedByID)
	}
	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	documents, err := s.documents.ListShipmentDocuments(ctx, shipment.ID)
	if err != nil {
		return nil, err
	}
	if documents == nil {
		documents = []model.Document{}
	}

	accessorialTotal := pricing.SumPricingTable(shipment.AccessorialPricing)
	view := &ShipmentView{
		Shipment:                *shipment,
		Shipper:                 lookupUser(users, &shipment.ShipperID),
		PostedBy:                lookupUser(users, &shipment.PostedByID),
		Carrier:                 lookupUser(users, shipment.Carrier()),
		BookedBy:                lookupUser(users, shipment.BookedByID),
		AccessorialPricingTotal: accessorialTotal.InexactFloat64(),
		TotalRate:               decimal.NewFromFloat(shipment.BaseRate.Amount).Add(accessorialTotal).InexactFloat64(),
		Documents:               documents,
	}
	return view, nil
}

func validateCreate(input CreateShipmentInput) error {
	switch {
	case strings.TrimSpace(input.ShipmentType) == "":
		return fmt.Errorf("%w: shipmentType is required", ErrInvalidInput)
	case strings.TrimSpace(input.EquipmentType) == "":
		return fmt.Errorf("%w: equipmentType is required", ErrInvalidInput)
	case input.PickupDate.IsZero() || input.DeliveryDate.IsZero():
		return fmt.Errorf("%w: pickup and delivery dates are required", ErrInvalidInput)
	case input.DeliveryDate.Before(input.PickupDate):
		return fmt.Errorf("%w: deliveryDate must not precede pickupDate", ErrInvalidInput)
	case input.Distance < 0:
		return fmt.Errorf("%w: distance must not be negative", ErrInvalidInput)
	case input.BaseRate.Amount < 0:
		return fmt.Errorf("%w: baseRate.amount must not be negative", ErrInvalidInput)
	}
	for category := range input.Accessorials {
		if !isSelectable(category) {
			return fmt.Errorf("%w: unknown accessorial category %q", ErrInvalidInput, category)
		}
	}
	return nil
}

func validatePricingTable(table model.PricingTable) error {
	for category, group := range table {
		if !isPriced(category) {
			return fmt.Errorf("%w: unknown pricing category %q", ErrInvalidInput, category)
		}
		for key, value := range group {
			if pricing.ParsePrice(value).IsNegative() {
				return fmt.Errorf("%w: %s.%s must not be negative", ErrInvalidInput, category, key)
			}
		}
	}
	return nil
}

func isSelectable(category string) bool {
	for _, c := range model.SelectableCategories {
		if c == category {
			return true
		}
	}
	return false
}

func isPriced(category string) bool {
	for _, c := range model.PricedCategories {
		if c == category {
			return true
		}
	}
	return false
}

func normalizeBaseRate(rate model.BaseRate) model.BaseRate {
	rate.Currency = strings.ToUpper(strings.TrimSpace(rate.Currency))
	if rate.Currency == "" {
		rate.Currency = "USD"
	}
	return rate
}

func lookupUser(users map[uuid.UUID]model.User, id *uuid.UUID) *model.User {
	if id == nil {
		return nil
	}
	user, ok := users[*id]
	if !ok {
		return nil
	}
	return &user
}
