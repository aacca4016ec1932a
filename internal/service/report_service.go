package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/freight-booking/internal/model"
	"github.com/nurpe/freight-booking/internal/pricing"
)

type ExcelGenerator interface {
	Generate(report model.BookedLoadsReport) ([]byte, error)
}

type BookedLoadLister interface {
	ListBookedByCarrier(ctx context.Context, carrierID uuid.UUID, from, to time.Time) ([]model.Shipment, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type ReportService struct {
	shipments BookedLoadLister
	users     UserReader
	excel     ExcelGenerator
}

type BookedLoadsInput struct {
	Principal   model.Principal
	PeriodStart time.Time
	PeriodEnd   time.Time
}

type GenerateReportResult struct {
	FileName string
	Content  []byte
}

func NewReportService(shipments BookedLoadLister, users UserReader, excel ExcelGenerator) *ReportService {
	return &ReportService{shipments: shipments, users: users, excel: excel}
}

func (s *ReportService) BookedLoads(ctx context.Context, input BookedLoadsInput) (*GenerateReportResult, error) {
	if !input.Principal.CanHaul() {
		return nil, ErrPermissionDenied
	}
	if input.PeriodStart.IsZero() || input.PeriodEnd.IsZero() {
		return nil, fmt.Errorf("%w: period dates are required", ErrInvalidInput)
	}

	periodStart := dateOnly(input.PeriodStart)
	periodEnd := dateOnly(input.PeriodEnd)
	if periodStart.After(periodEnd) {
		return nil, fmt.Errorf("%w: from must be before or equal to to", ErrInvalidInput)
	}
	endExclusive := periodEnd.Add(24 * time.Hour)

	carrier, err := s.users.GetUser(ctx, input.Principal.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	shipments, err := s.shipments.ListBookedByCarrier(ctx, input.Principal.UserID, periodStart, endExclusive)
	if err != nil {
		return nil, err
	}

	loads := make([]model.BookedLoad, 0, len(shipments))
	for _, shipment := range shipments {
		loads = append(loads, toBookedLoad(shipment))
	}

	report := model.BookedLoadsReport{
		Carrier:     *carrier,
		CarrierID:   carrier.ID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Loads:       loads,
	}
	content, err := s.excel.Generate(report)
	if err != nil {
		return nil, err
	}

	return &GenerateReportResult{
		FileName: buildFileName(report),
		Content:  content,
	}, nil
}

func toBookedLoad(shipment model.Shipment) model.BookedLoad {
	accessorialTotal := pricing.SumPricingTable(shipment.AccessorialPricing)
	load := model.BookedLoad{
		ShipmentNumber:      shipment.ShipmentNumber,
		Status:              shipment.Status,
		Origin:              shipment.Origin,
		Destination:         shipment.Destination,
		PickupDate:          shipment.PickupDate,
		DeliveryDate:        shipment.DeliveryDate,
		Distance:            shipment.Distance,
		BaseAmount:          shipment.BaseRate.Amount,
		AccessorialTotal:    accessorialTotal.InexactFloat64(),
		TotalRate:           decimal.NewFromFloat(shipment.BaseRate.Amount).Add(accessorialTotal).InexactFloat64(),
		RatePerMile:         shipment.RatePerMile,
		Currency:            shipment.BaseRate.Currency,
		RateConfirmationURL: shipment.RateConfirmationURL,
	}
	if shipment.BookedAt != nil {
		load.BookedAt = *shipment.BookedAt
	}
	return load
}

func buildFileName(report model.BookedLoadsReport) string {
	target := sanitizeFileName(report.Carrier.DisplayName())
	if target == "" {
		target = report.CarrierID.String()
	}
	period := fmt.Sprintf("%s-%s", report.PeriodStart.Format("20060102"), report.PeriodEnd.Format("20060102"))
	return fmt.Sprintf("booked-loads-%s-%s.xlsx", target, period)
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
