package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/freight-booking/internal/model"
	"github.com/nurpe/freight-booking/internal/pricing"
)

const (
	layoutFile = "template.json"
	logoFile   = "logo.png"
	logoName   = "logo"
)

var ErrTemplate = errors.New("rate confirmation template unavailable")

// Broker identifies the issuing party printed in the document header.
type Broker struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

type layout struct {
	Title  string `json:"title"`
	Broker Broker `json:"broker"`
	Footer string `json:"footer"`
	Logo   string `json:"logo"`

	logo []byte
}

// Generator renders rate confirmations from template bundles stored as
// <templateDir>/<name>/template.json plus a PNG logo.
type Generator struct {
	templateDir string
}

func NewGenerator(templateDir string) *Generator {
	return &Generator{templateDir: templateDir}
}

// Render produces the PDF bytes. gofpdf does not observe contexts, so the
// layout runs on its own goroutine and an expired ctx abandons it.
func (g *Generator) Render(ctx context.Context, templateName string, doc model.RateConfirmation) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := g.render(templateName, doc)
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.data, res.err
	}
}

func (g *Generator) loadLayout(name string) (*layout, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("%w: invalid template name %q", ErrTemplate, name)
	}
	dir := filepath.Join(g.templateDir, name)

	raw, err := os.ReadFile(filepath.Join(dir, layoutFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	var l layout
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrTemplate, layoutFile, err)
	}
	if l.Title == "" {
		l.Title = "Rate Confirmation"
	}
	if l.Logo == "" {
		l.Logo = logoFile
	}
	if filepath.Base(l.Logo) != l.Logo {
		return nil, fmt.Errorf("%w: invalid logo path %q", ErrTemplate, l.Logo)
	}

	l.logo, err = os.ReadFile(filepath.Join(dir, l.Logo))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	if len(l.logo) == 0 {
		return nil, fmt.Errorf("%w: logo %s is empty", ErrTemplate, l.Logo)
	}
	return &l, nil
}

func (g *Generator) render(templateName string, doc model.RateConfirmation) ([]byte, error) {
	l, err := g.loadLayout(templateName)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		footer := fmt.Sprintf("Page %d", pdf.PageNo())
		if l.Footer != "" {
			footer = l.Footer + "  |  " + footer
		}
		pdf.CellFormat(0, 6, tr(footer), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader(logoName, opts, bytes.NewReader(l.logo))
	if pdf.Err() {
		return nil, fmt.Errorf("%w: embed logo: %v", ErrTemplate, pdf.Error())
	}
	pdf.ImageOptions(logoName, 15, 12, 35, 0, false, opts, 0, "")

	shipment := doc.Shipment
	currency := shipment.BaseRate.Currency

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr(l.Title), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range []string{l.Broker.Name, l.Broker.Address, l.Broker.Phone, l.Broker.Email} {
		if line != "" {
			pdf.CellFormat(0, 4.5, tr(line), "", 1, "R", false, 0, "")
		}
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(95, 7, tr("Load #: "+shipment.ShipmentNumber), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 7, "Issued: "+formatDate(doc.IssuedAt), "", 1, "R", false, 0, "")
	pdf.Ln(2)

	sectionTitle(pdf, "Parties")
	partyColumns(pdf, tr, doc.Shipper, doc.Carrier)
	pdf.Ln(3)

	sectionTitle(pdf, "Route")
	drawTableRow(pdf, tr, []string{"Stop", "Location", "Date"}, []float64{30, 110, 40}, true)
	drawTableRow(pdf, tr, []string{"Pickup", formatAddress(shipment.Origin), formatDate(shipment.PickupDate)}, []float64{30, 110, 40}, false)
	drawTableRow(pdf, tr, []string{"Delivery", formatAddress(shipment.Destination), formatDate(shipment.DeliveryDate)}, []float64{30, 110, 40}, false)
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 10)
	details := []string{
		"Equipment: " + safeValue(shipment.EquipmentType),
		"Shipment type: " + safeValue(shipment.ShipmentType),
		fmt.Sprintf("Distance: %s mi", formatAmount(shipment.Distance, 0)),
	}
	if shipment.Commodity != "" {
		details = append(details, "Commodity: "+shipment.Commodity)
	}
	if shipment.Weight > 0 {
		details = append(details, fmt.Sprintf("Weight: %s lbs", formatAmount(shipment.Weight, 0)))
	}
	pdf.MultiCell(0, 5, tr(strings.Join(details, "    ")), "", "L", false)
	pdf.Ln(3)

	sectionTitle(pdf, "Rate")
	widths := []float64{130, 50}
	drawTableRow(pdf, tr, []string{"Description", "Amount"}, widths, true)
	baseLabel := "Base rate"
	if shipment.BaseRate.RateType != "" {
		baseLabel += " (" + shipment.BaseRate.RateType + ")"
	}
	drawTableRow(pdf, tr, []string{baseLabel, pricing.FormatMoney(decimal.NewFromFloat(shipment.BaseRate.Amount), currency)}, widths, false)
	for _, line := range doc.Accessorials {
		drawTableRow(pdf, tr, []string{line.Label, line.Price}, widths, false)
	}
	drawTableRow(pdf, tr, []string{"Total", pricing.FormatMoney(decimal.NewFromFloat(doc.TotalRate), currency)}, widths, true)

	rpm := "N/A"
	if doc.RatePerMile != nil {
		rpm = pricing.FormatMoney(decimal.NewFromFloat(*doc.RatePerMile), currency) + " / mi"
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Rate per mile: "+rpm), "", 1, "R", false, 0, "")

	if shipment.SpecialInstructions != "" {
		pdf.Ln(2)
		sectionTitle(pdf, "Special Instructions")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(shipment.SpecialInstructions), "", "L", false)
	}

	pdf.Ln(3)
	sectionTitle(pdf, "Terms and Conditions")
	pdf.SetFont("Helvetica", "I", 8)
	version := "Version " + safeValue(doc.Terms.Version)
	if doc.Terms.LastUpdated != "" {
		version += ", last updated " + doc.Terms.LastUpdated
	}
	pdf.CellFormat(0, 5, tr(version), "", 1, "L", false, 0, "")
	for i, clause := range doc.Terms.Clauses {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("%d. %s", i+1, clause.Title)), "", "L", false)
		pdf.SetFont("Helvetica", "", 8.5)
		pdf.MultiCell(0, 4.2, tr(clause.Body), "", "J", false)
		pdf.Ln(1)
	}

	pdf.Ln(6)
	sectionTitle(pdf, "Signatures")
	signatureBlock(pdf, tr, "Carrier", doc.Carrier.DisplayName())
	signatureBlock(pdf, tr, "Broker", safeValue(l.Broker.Name))

	if pdf.Err() {
		return nil, fmt.Errorf("layout rate confirmation: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(235, 238, 242)
	pdf.CellFormat(0, 7, title, "", 1, "L", true, 0, "")
	pdf.Ln(1)
}

func partyColumns(pdf *gofpdf.Fpdf, tr func(string) string, shipper, carrier model.User) {
	left := partyLines("Shipper", shipper)
	right := partyLines("Carrier", carrier)
	if carrier.DOTNumber != "" {
		right = append(right, "DOT #: "+carrier.DOTNumber)
	}
	rows := max(len(left), len(right))
	for i := 0; i < rows; i++ {
		style := ""
		if i == 0 {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(90, 5, tr(lineAt(left, i)), "", 0, "L", false, 0, "")
		pdf.CellFormat(90, 5, tr(lineAt(right, i)), "", 1, "L", false, 0, "")
	}
}

func partyLines(role string, u model.User) []string {
	lines := []string{role + ": " + u.DisplayName()}
	for _, v := range []string{u.Address, u.PhoneNumber, u.Email} {
		if v != "" {
			lines = append(lines, v)
		}
	}
	return lines
}

func lineAt(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}

func drawTableRow(pdf *gofpdf.Fpdf, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 10)
	last := len(cols) - 1
	for i, col := range cols {
		align := "L"
		if i == last && i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, tr(col), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func signatureBlock(pdf *gofpdf.Fpdf, tr func(string) string, label, name string) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s: ______________________ /%s/    Date: ____________", label, name)), "", 1, "L", false, 0, "")
}

func formatAddress(a model.Address) string {
	parts := make([]string, 0, 4)
	for _, v := range []string{a.Address, a.City, strings.TrimSpace(a.State + " " + a.Zipcode), a.Country} {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	return safeValue(strings.Join(parts, ", "))
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}

func formatAmount(value float64, precision int) string {
	return decimal.NewFromFloat(value).StringFixed(int32(precision))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("01/02/2006")
}
