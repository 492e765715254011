package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stiralka/internal/model"
)

func TestWeekWorkbook(t *testing.T) {
	bookings := []model.Booking{
		{Day: model.Monday, Time: "14:00", Username: "777АБВ"},
		{Day: model.Monday, Time: "15:30", Username: "111ГДЕ"},
		{Day: model.Sunday, Time: "22:30", Username: "222ЖЗИ"},
	}

	f, err := WeekWorkbook(bookings)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, model.WeekdayLabels(), f.GetSheetList())

	header, err := f.GetCellValue("Пн", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Время", header)

	tm, err := f.GetCellValue("Пн", "A2")
	require.NoError(t, err)
	assert.Equal(t, "14:00", tm)

	name, err := f.GetCellValue("Пн", "B3")
	require.NoError(t, err)
	assert.Equal(t, "111ГДЕ", name)

	sunday, err := f.GetCellValue("Вс", "B2")
	require.NoError(t, err)
	assert.Equal(t, "222ЖЗИ", sunday)

	// Empty days still come out as sheets with just the header.
	empty, err := f.GetCellValue("Вт", "A2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestWeekWorkbookEmpty(t *testing.T) {
	f, err := WeekWorkbook(nil)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Len(t, f.GetSheetList(), 7)
}
