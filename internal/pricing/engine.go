// Package pricing computes shipment totals from a base rate and an
// accessorial price table.
//
// Two summation rules exist on purpose. ComputeTotal adds only the selected
// accessorials and prices a shipment when it is posted. SumPricingTable adds
// every numeric leaf of the table and is used when an already priced shipment
// is shown again. Keep them separate.
package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/nurpe/freight-booking/internal/model"
)

// ComputeTotal returns base plus the price of every selected accessorial in
// the shipment, pickup and delivery categories. Missing or unparseable prices
// count as zero.
func ComputeTotal(base decimal.Decimal, table model.PricingTable, selection model.AccessorialSelection) decimal.Decimal {
	return base.Add(SumSelected(table, selection))
}

// SumSelected is the accessorial part of ComputeTotal.
func SumSelected(table model.PricingTable, selection model.AccessorialSelection) decimal.Decimal {
	total := decimal.Zero
	for _, category := range model.SelectableCategories {
		selected := selection[category]
		prices := table[category]
		for key, checked := range selected {
			if !checked {
				continue
			}
			total = total.Add(ParsePrice(prices[key]))
		}
	}
	return total
}

// SumPricingTable adds every numeric leaf across all four categories,
// ignoring any selection. Non-numeric leaves, numeric strings included, are skipped.
func SumPricingTable(table model.PricingTable) decimal.Decimal {
	total := decimal.Zero
	for _, category := range model.PricedCategories {
		for _, value := range table[category] {
			if amount, ok := numericLeaf(value); ok {
				total = total.Add(amount)
			}
		}
	}
	return total
}

// RatePerMile divides total by distance, rounded to cents. The second result
// is false when distance is not positive and the rate is undefined.
func RatePerMile(total, distance decimal.Decimal) (decimal.Decimal, bool) {
	if !distance.IsPositive() {
		return decimal.Zero, false
	}
	return total.DivRound(distance, 2), true
}

// Itemize lists every accessorial with a positive numeric price, in catalogue
// order, and returns the sum of the listed amounts.
func Itemize(table model.PricingTable, currency string) ([]model.AccessorialLine, decimal.Decimal) {
	var lines []model.AccessorialLine
	total := decimal.Zero
	for _, category := range model.PricedCategories {
		group := table[category]
		for _, key := range model.OrderedKeys(category, group) {
			amount, ok := numericLeaf(group[key])
			if !ok || !amount.IsPositive() {
				continue
			}
			total = total.Add(amount)

			label := FormatLabel(key)
			if category != model.CategoryOther {
				label = fmt.Sprintf("%s (%s)", label, category)
			}
			lines = append(lines, model.AccessorialLine{
				Category: category,
				Key:      key,
				Label:    label,
				Amount:   amount.InexactFloat64(),
				Price:    FormatMoney(amount, currency),
			})
		}
	}
	return lines, total
}

// FormatLabel turns a camel-case key into capitalised words: "detentionPerHr"
// becomes "Detention Per Hr".
func FormatLabel(key string) string {
	var b strings.Builder
	for i, r := range key {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func FormatMoney(amount decimal.Decimal, currency string) string {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "", "USD":
		return "$" + amount.StringFixed(2)
	default:
		return amount.StringFixed(2) + " " + strings.ToUpper(currency)
	}
}

// ParsePrice reads a price table leaf. Numbers and numeric strings are
// accepted; anything else is zero.
func ParsePrice(value any) decimal.Decimal {
	if amount, ok := numericLeaf(value); ok {
		return amount
	}
	raw, ok := value.(string)
	if !ok {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return amount
}

func numericLeaf(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		amount, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, false
		}
		return amount, true
	case decimal.Decimal:
		return v, true
	default:
		return decimal.Zero, false
	}
}
