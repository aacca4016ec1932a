package model

import (
	"time"

	"github.com/google/uuid"
)

// Account owns the accessorial price list used when a shipment is posted for it.
type Account struct {
	ID                 uuid.UUID    `json:"id"`
	AccountName        string       `json:"accountName"`
	Currency           string       `json:"currency"`
	PaymentTerms       string       `json:"paymentTerms"`
	AccessorialPricing PricingTable `json:"accessorialPricing"`
	CreatedByID        *uuid.UUID   `json:"createdBy,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
}
