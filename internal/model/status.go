package model

type ShipmentStatus string

const (
	ShipmentStatusAvailable ShipmentStatus = "Available"
	ShipmentStatusBooked    ShipmentStatus = "Booked"
	ShipmentStatusInTransit ShipmentStatus = "In Transit"
	ShipmentStatusDelivered ShipmentStatus = "Delivered"
	ShipmentStatusInvoiced  ShipmentStatus = "Invoiced"
	ShipmentStatusPaid      ShipmentStatus = "Paid"
	ShipmentStatusCancelled ShipmentStatus = "Cancelled"
)

// lifecycle is the canonical forward order. Cancelled sits outside it.
var lifecycle = [...]ShipmentStatus{
	ShipmentStatusAvailable,
	ShipmentStatusBooked,
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
	ShipmentStatusInvoiced,
	ShipmentStatusPaid,
}

func (s ShipmentStatus) Valid() bool {
	if s == ShipmentStatusCancelled {
		return true
	}
	for _, v := range lifecycle {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ShipmentStatus) Terminal() bool {
	return s == ShipmentStatusPaid || s == ShipmentStatusCancelled
}

// CarrierBearing reports whether a shipment in s must have a carrier assigned.
func (s ShipmentStatus) CarrierBearing() bool {
	switch s {
	case ShipmentStatusBooked,
		ShipmentStatusInTransit,
		ShipmentStatusDelivered,
		ShipmentStatusInvoiced,
		ShipmentStatusPaid:
		return true
	}
	return false
}

// Next returns the canonical forward successor of s.
func (s ShipmentStatus) Next() (ShipmentStatus, bool) {
	for i, v := range lifecycle {
		if v == s && i+1 < len(lifecycle) {
			return lifecycle[i+1], true
		}
	}
	return "", false
}

// CanTransition allows exactly the forward edge and the edge to Cancelled
// from any non-terminal status.
func (s ShipmentStatus) CanTransition(to ShipmentStatus) bool {
	if s.Terminal() || !to.Valid() {
		return false
	}
	if to == ShipmentStatusCancelled {
		return true
	}
	next, ok := s.Next()
	return ok && next == to
}

func ParseShipmentStatus(raw string) (ShipmentStatus, bool) {
	status := ShipmentStatus(raw)
	return status, status.Valid()
}
