// Package export renders the weekly schedule as an Excel workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"stiralka/internal/model"
)

var headerColumns = []string{"Время", "Никнейм"}

// WeekWorkbook builds a workbook with one sheet per weekday. Bookings are
// expected in store order (day, then time ascending).
func WeekWorkbook(bookings []model.Booking) (*excelize.File, error) {
	byDay := make(map[model.Weekday][]model.Booking)
	for _, b := range bookings {
		byDay[b.Day] = append(byDay[b.Day], b)
	}

	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for day := model.Monday; day <= model.Sunday; day++ {
		sheet := day.Label()
		if day == model.Monday {
			// The default sheet gets renamed; the rest are created.
			f.SetSheetName("Sheet1", sheet)
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}

		for i, col := range headerColumns {
			cell, err := excelize.CoordinatesToCellName(i+1, 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, col); err != nil {
				return nil, fmt.Errorf("write header: %w", err)
			}
		}
		_ = f.SetCellStyle(sheet, "A1", "B1", headerStyle)

		for i, b := range byDay[day] {
			row := i + 2
			if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), b.Time); err != nil {
				return nil, fmt.Errorf("write row: %w", err)
			}
			if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row), b.Username); err != nil {
				return nil, fmt.Errorf("write row: %w", err)
			}
		}
	}

	return f, nil
}
