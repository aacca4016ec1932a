package model

import "github.com/google/uuid"

type UserType string

const (
	UserTypeShipper        UserType = "Shipper"
	UserTypeCarrier        UserType = "Carrier"
	UserTypeEmployee       UserType = "Employee"
	UserTypeCarrierShipper UserType = "Carrier/Shipper"
)

type User struct {
	ID          uuid.UUID   `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	CompanyName string      `json:"companyName"`
	Address     string      `json:"address"`
	PhoneNumber string      `json:"phoneNumber"`
	DOTNumber   string      `json:"dotNumber"`
	UserType    UserType    `json:"userType"`
	DocumentIDs []uuid.UUID `json:"documents,omitempty" gorm:"-"`
}

func (u User) DisplayName() string {
	if u.CompanyName != "" {
		return u.CompanyName
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}
