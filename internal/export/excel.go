package export

import (
	"fmt"
	"io"
	"sort"

	"bookcal/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

var headers = []string{"ID", "Apartment", "Guest", "Email", "Phone", "Check-in", "Check-out", "Nights", "Status", "Notes"}

// WriteBookings renders the booking table as an xlsx workbook, ordered
// by check-in date.
func WriteBookings(w io.Writer, bookings []models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	sorted := append([]models.Booking(nil), bookings...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartDate.Before(sorted[j].StartDate)
	})

	for row, b := range sorted {
		nights := int(b.EndDate.Sub(b.StartDate).Hours() / 24)
		values := []interface{}{
			b.ID,
			b.ApartmentName,
			b.GuestName,
			b.GuestEmail,
			b.GuestPhone,
			b.StartDate.Format("2006-01-02"),
			b.EndDate.Format("2006-01-02"),
			nights,
			b.Status,
			b.Notes,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
