package model

import (
	"time"

	"github.com/google/uuid"
)

// BookedLoad is one row of a carrier's booked-loads report.
type BookedLoad struct {
	ShipmentNumber      string
	Status              ShipmentStatus
	Origin              Address
	Destination         Address
	PickupDate          time.Time
	DeliveryDate        time.Time
	Distance            float64
	BaseAmount          float64
	AccessorialTotal    float64
	TotalRate           float64
	RatePerMile         *float64
	Currency            string
	BookedAt            time.Time
	RateConfirmationURL *string
}

type BookedLoadsReport struct {
	Carrier     User
	CarrierID   uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	Loads       []BookedLoad
}
