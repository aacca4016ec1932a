package model

import "sort"

const (
	CategoryShipment = "shipment"
	CategoryPickup   = "pickup"
	CategoryDelivery = "delivery"
	CategoryOther    = "other"
)

// SelectableCategories are the categories a shipper can tick accessorials in.
var SelectableCategories = []string{CategoryShipment, CategoryPickup, CategoryDelivery}

// PricedCategories are all categories of a pricing table.
var PricedCategories = []string{CategoryShipment, CategoryPickup, CategoryDelivery, CategoryOther}

// AccessorialKeys lists the known accessorials per category in display order.
var AccessorialKeys = map[string][]string{
	CategoryShipment: {"hazmat", "overdimension", "prepaidAndAdd", "freezeProtection"},
	CategoryPickup: {
		"inside", "liftgate", "limitedAccess", "notifyConsignee",
		"militaryAccess", "residential", "airport", "groceryWarehouse",
	},
	CategoryDelivery: {
		"inside", "liftgate", "limitedAccess", "notifyConsignee",
		"militaryAccess", "residential", "appointment", "airport", "groceryWarehouse",
	},
	CategoryOther: {"detentionPerHr", "redelivery", "reconsignment"},
}

// PricingTable maps category -> accessorial key -> unit price. Leaves are kept
// as decoded from JSON so that malformed entries survive until pricing reads them.
type PricingTable map[string]map[string]any

// AccessorialSelection maps category -> accessorial key -> selected.
type AccessorialSelection map[string]map[string]bool

// Clone returns a deep copy; shipments never alias an account's table.
func (t PricingTable) Clone() PricingTable {
	if t == nil {
		return nil
	}
	out := make(PricingTable, len(t))
	for category, group := range t {
		if group == nil {
			out[category] = nil
			continue
		}
		copied := make(map[string]any, len(group))
		for key, value := range group {
			copied[key] = value
		}
		out[category] = copied
	}
	return out
}

func (s AccessorialSelection) Clone() AccessorialSelection {
	if s == nil {
		return nil
	}
	out := make(AccessorialSelection, len(s))
	for category, group := range s {
		copied := make(map[string]bool, len(group))
		for key, value := range group {
			copied[key] = value
		}
		out[category] = copied
	}
	return out
}

// OrderedKeys returns the keys of group: catalogued keys of the category
// first in catalogue order, then unknown keys sorted.
func OrderedKeys[V any](category string, group map[string]V) []string {
	keys := make([]string, 0, len(group))
	seen := make(map[string]struct{}, len(group))
	for _, key := range AccessorialKeys[category] {
		if _, ok := group[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}
	var extra []string
	for key := range group {
		if _, ok := seen[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// AccessorialLine is one itemized accessorial of a rate confirmation.
type AccessorialLine struct {
	Category string  `json:"category"`
	Key      string  `json:"key"`
	Label    string  `json:"label"`
	Amount   float64 `json:"amount"`
	Price    string  `json:"price"`
}
