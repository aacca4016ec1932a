package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/freight-booking/internal/model"
)

const summarySheet = "Summary"

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

type statusGroup struct {
	Status model.ShipmentStatus
	Loads  []model.BookedLoad
}

// Generate writes a summary sheet followed by one detail sheet per shipment
// status present in the report.
func (g *Generator) Generate(report model.BookedLoadsReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	groups := groupByStatus(report.Loads)
	if err := g.writeSummary(file, summarySheet, report, groups); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, group := range groups {
		sheetName := buildSheetName(string(group.Status), usedNames)
		usedNames[sheetName] = struct{}{}

		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		if err := g.writeDetail(file, sheetName, report, group); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.BookedLoadsReport, groups []statusGroup) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Carrier")
	set("B1", report.Carrier.DisplayName())
	set("A2", "DOT number")
	set("B2", report.Carrier.DOTNumber)
	set("A3", "Period start")
	set("B3", formatDate(report.PeriodStart))
	set("A4", "Period end")
	set("B4", formatDate(report.PeriodEnd))
	set("A5", "Loads")
	set("B5", len(report.Loads))
	set("A6", "Total miles")
	set("B6", formatAmount(sumDistance(report.Loads)))
	set("A7", "Total revenue")
	set("B7", formatAmount(sumTotal(report.Loads)))

	tableRow := 9
	set(fmt.Sprintf("A%d", tableRow), "Status")
	set(fmt.Sprintf("B%d", tableRow), "Loads")
	set(fmt.Sprintf("C%d", tableRow), "Revenue")

	for i, group := range groups {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), string(group.Status))
		set(fmt.Sprintf("B%d", row), len(group.Loads))
		set(fmt.Sprintf("C%d", row), formatAmount(sumTotal(group.Loads)))
	}

	style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	_ = file.SetCellStyle(sheet, "A1", "A7", style)
	_ = file.SetCellStyle(sheet, fmt.Sprintf("A%d", tableRow), fmt.Sprintf("C%d", tableRow), style)

	_ = file.SetColWidth(sheet, "A", "A", 24)
	_ = file.SetColWidth(sheet, "B", "B", 32)
	_ = file.SetColWidth(sheet, "C", "C", 16)
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, report model.BookedLoadsReport, group statusGroup) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Carrier")
	set("B1", report.Carrier.DisplayName())
	set("A2", "Status")
	set("B2", string(group.Status))
	set("A3", "Loads")
	set("B3", len(group.Loads))

	tableRow := 5
	headers := []string{
		"Shipment #",
		"Booked at",
		"Pickup",
		"Origin",
		"Delivery",
		"Destination",
		"Miles",
		"Base rate",
		"Accessorials",
		"Total",
		"Rate per mile",
		"Currency",
		"Rate confirmation",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, load := range group.Loads {
		row := tableRow + 1 + i
		values := []interface{}{
			load.ShipmentNumber,
			formatDateTime(load.BookedAt),
			formatDate(load.PickupDate),
			formatPlace(load.Origin),
			formatDate(load.DeliveryDate),
			formatPlace(load.Destination),
			load.Distance,
			load.BaseAmount,
			load.AccessorialTotal,
			load.TotalRate,
			formatRate(load.RatePerMile),
			load.Currency,
			formatString(load.RateConfirmationURL),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			set(cell, value)
		}
	}

	_ = file.SetColWidth(sheet, "A", "B", 20)
	_ = file.SetColWidth(sheet, "C", "C", 12)
	_ = file.SetColWidth(sheet, "D", "D", 28)
	_ = file.SetColWidth(sheet, "E", "E", 12)
	_ = file.SetColWidth(sheet, "F", "F", 28)
	_ = file.SetColWidth(sheet, "G", "L", 14)
	_ = file.SetColWidth(sheet, "M", "M", 52)
	return nil
}

func groupByStatus(loads []model.BookedLoad) []statusGroup {
	var groups []statusGroup
	index := make(map[model.ShipmentStatus]int)
	for _, load := range loads {
		pos, ok := index[load.Status]
		if !ok {
			groups = append(groups, statusGroup{Status: load.Status})
			pos = len(groups) - 1
			index[load.Status] = pos
		}
		groups[pos].Loads = append(groups[pos].Loads, load)
	}
	return groups
}

func buildSheetName(name string, used map[string]struct{}) string {
	base := sanitizeSheetName("Loads - " + strings.TrimSpace(name))
	if len(base) > 31 {
		base = base[:31]
	}

	nameCandidate := base
	counter := 2
	for {
		if _, exists := used[nameCandidate]; !exists {
			return nameCandidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		nameCandidate = trimmed + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
	}

	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Sheet"
	}
	return value
}

func formatPlace(a model.Address) string {
	parts := make([]string, 0, 2)
	if a.City != "" {
		parts = append(parts, a.City)
	}
	if a.State != "" {
		parts = append(parts, a.State)
	}
	return strings.Join(parts, ", ")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatRate(value *float64) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *value)
}

func formatAmount(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func sumDistance(loads []model.BookedLoad) decimal.Decimal {
	total := decimal.Zero
	for _, load := range loads {
		total = total.Add(decimal.NewFromFloat(load.Distance))
	}
	return total
}

func sumTotal(loads []model.BookedLoad) decimal.Decimal {
	total := decimal.Zero
	for _, load := range loads {
		total = total.Add(decimal.NewFromFloat(load.TotalRate))
	}
	return total
}
