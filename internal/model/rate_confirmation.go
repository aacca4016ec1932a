package model

import "time"

type TermsClause struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Terms is the versioned legal text printed on every rate confirmation.
type Terms struct {
	Version     string        `json:"version"`
	LastUpdated string        `json:"lastUpdated"`
	Clauses     []TermsClause `json:"terms_and_conditions"`
}

// RateConfirmation is the fully resolved input of the document renderer.
type RateConfirmation struct {
	Shipment         Shipment
	Shipper          User
	Carrier          User
	Accessorials     []AccessorialLine
	AccessorialTotal float64
	TotalRate        float64
	RatePerMile      *float64
	Terms            Terms
	IssuedAt         time.Time
}
