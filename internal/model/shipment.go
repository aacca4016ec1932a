package model

import (
	"time"

	"github.com/google/uuid"
)

type Address struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
	Country string `json:"country"`
}

type BaseRate struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	RateType string  `json:"rateType"`
}

type Shipment struct {
	ID                  uuid.UUID            `json:"id"`
	ShipmentNumber      string               `json:"shipmentNumber"`
	ShipmentType        string               `json:"shipmentType"`
	Status              ShipmentStatus       `json:"status"`
	AccountID           *uuid.UUID           `json:"accountId,omitempty"`
	PickupDate          time.Time            `json:"pickupDate"`
	DeliveryDate        time.Time            `json:"deliveryDate"`
	Origin              Address              `json:"origin"`
	Destination         Address              `json:"destination"`
	Distance            float64              `json:"distance"`
	EquipmentType       string               `json:"equipmentType"`
	Commodity           string               `json:"commodity,omitempty"`
	Weight              float64              `json:"weight,omitempty"`
	BaseRate            BaseRate             `json:"baseRate"`
	TotalRate           float64              `json:"totalRate"`
	RatePerMile         *float64             `json:"ratePerMile"`
	Accessorials        AccessorialSelection `json:"accessorials"`
	AccessorialPricing  PricingTable         `json:"accessorialPricing"`
	SpecialInstructions string               `json:"specialInstructions,omitempty"`
	Notes               string               `json:"notes,omitempty"`

	ShipperID         uuid.UUID  `json:"shipper"`
	PostedByID        uuid.UUID  `json:"postedBy"`
	CarrierID         *uuid.UUID `json:"carrier"`
	AssignedCarrierID *uuid.UUID `json:"assignedCarrier"`
	BookedByID        *uuid.UUID `json:"bookedBy"`
	BookedAt          *time.Time `json:"bookedAt"`
	CancelledByID     *uuid.UUID `json:"cancelledBy"`
	CancelledAt       *time.Time `json:"cancelledAt"`

	RateConfirmationURL *string     `json:"rateConfirmationUrl"`
	DocumentIDs         []uuid.UUID `json:"documents"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Carrier returns whichever carrier reference is set.
func (s Shipment) Carrier() *uuid.UUID {
	if s.CarrierID != nil {
		return s.CarrierID
	}
	return s.AssignedCarrierID
}

// ShipmentDetails is a shipment with its participants resolved.
type ShipmentDetails struct {
	Shipment Shipment
	Shipper  User
	PostedBy User
	Carrier  *User
	BookedBy *User
}
