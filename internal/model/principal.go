package model

import "github.com/google/uuid"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   uuid.UUID
	UserType UserType
}

func (p Principal) CanHaul() bool {
	return p.UserType == UserTypeCarrier || p.UserType == UserTypeCarrierShipper
}

func (p Principal) CanPost() bool {
	return p.UserType == UserTypeShipper || p.UserType == UserTypeCarrierShipper || p.IsEmployee()
}

func (p Principal) IsEmployee() bool {
	return p.UserType == UserTypeEmployee
}
