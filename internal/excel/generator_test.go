package excel

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/freight-booking/internal/model"
)

func TestGenerate(t *testing.T) {
	key := "rate-confirmations/F-12345_RateConfirmation.pdf"
	rpm := 4.3
	report := model.BookedLoadsReport{
		Carrier:     model.User{CompanyName: "Fast Haul LLC", DOTNumber: "1234567"},
		PeriodStart: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
		Loads: []model.BookedLoad{
			{
				ShipmentNumber:      "F-12345",
				Status:              model.ShipmentStatusBooked,
				Origin:              model.Address{City: "Dallas", State: "TX"},
				Destination:         model.Address{City: "Houston", State: "TX"},
				Distance:            250,
				BaseAmount:          1000,
				AccessorialTotal:    75,
				TotalRate:           1075,
				RatePerMile:         &rpm,
				Currency:            "USD",
				BookedAt:            time.Date(2025, 9, 2, 8, 30, 0, 0, time.UTC),
				RateConfirmationURL: &key,
			},
			{
				ShipmentNumber: "F-54321",
				Status:         model.ShipmentStatusDelivered,
				Distance:       100,
				BaseAmount:     1075,
				TotalRate:      1075,
				Currency:       "USD",
			},
		},
	}

	content, err := NewGenerator().Generate(report)
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, []string{"Summary", "Loads - Booked", "Loads - Delivered"}, file.GetSheetList())

	value, err := file.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "Fast Haul LLC", value)

	value, _ = file.GetCellValue("Summary", "B5")
	assert.Equal(t, "2", value)
	value, _ = file.GetCellValue("Summary", "B7")
	assert.Equal(t, "2150.00", value)

	value, _ = file.GetCellValue("Loads - Booked", "A6")
	assert.Equal(t, "F-12345", value)
	value, _ = file.GetCellValue("Loads - Booked", "K6")
	assert.Equal(t, "4.30", value)
	value, _ = file.GetCellValue("Loads - Booked", "M6")
	assert.Equal(t, key, value)
}

func TestGenerate_EmptyReport(t *testing.T) {
	content, err := NewGenerator().Generate(model.BookedLoadsReport{})
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, []string{"Summary"}, file.GetSheetList())
}

func TestBuildSheetName(t *testing.T) {
	used := map[string]struct{}{"Loads - In Transit": {}}
	assert.Equal(t, "Loads - In Transit-2", buildSheetName("In Transit", used))
	assert.Equal(t, "Loads - a-b", buildSheetName("a/b", used))
}
