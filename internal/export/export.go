// Package export renders the loaded calendar window as an Excel workbook:
// one month-grid sheet per loaded month plus a change-log sheet.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"shiftscheduler/internal/model"
	"shiftscheduler/internal/state"
)

// ErrNothingLoaded means no calendar window is loaded, so there is nothing to
// export.
var ErrNothingLoaded = errors.New("export: no calendar window loaded")

const logSheet = "Change Log"

var weekdayHeader = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Workbook renders the state's loaded window. The suggested filename carries
// the covered month range.
func Workbook(st state.State) (*bytes.Buffer, string, error) {
	rng := st.Schedule.Range
	if rng == nil {
		return nil, "", ErrNothingLoaded
	}

	// entries per calendar day; the window is overlap-guarded so one entry
	// per day is the norm, but the grid tolerates more
	byDay := make(map[string][]model.ScheduledEntry)
	for _, e := range st.Schedule.Entries {
		key := e.Date.Format("2006-01-02")
		byDay[key] = append(byDay[key], e)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, "", err
	}
	dayStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 10},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top"},
	})
	if err != nil {
		return nil, "", err
	}

	first := model.MonthStart(rng.Start)
	var firstSheet string
	for month := first; month.Before(rng.End); month = month.AddDate(0, 1, 0) {
		name := month.Format("2006-01")
		if firstSheet == "" {
			firstSheet = name
		}
		if _, err := f.NewSheet(name); err != nil {
			return nil, "", err
		}
		if err := writeMonthGrid(f, name, month, byDay, headerStyle, dayStyle); err != nil {
			return nil, "", err
		}
	}

	if err := writeChangeLog(f, st.ChangeLog.Entries, headerStyle); err != nil {
		return nil, "", err
	}

	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(firstSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", fmt.Errorf("export: write workbook: %w", err)
	}

	filename := fmt.Sprintf("shifts_%s_%s.xlsx",
		first.Format("2006-01"),
		rng.End.AddDate(0, 0, -1).Format("2006-01"))
	return buf, filename, nil
}

// writeMonthGrid lays one month out as a Mon–Sun calendar grid: per week one
// row of day numbers and one row of shift titles beneath it.
func writeMonthGrid(f *excelize.File, sheet string, month time.Time, byDay map[string][]model.ScheduledEntry, headerStyle, dayStyle int) error {
	if err := f.SetColWidth(sheet, "A", "G", 16); err != nil {
		return err
	}

	if err := f.SetCellValue(sheet, "A1", month.Format("January 2006")); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, "A1", "G1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "G1", headerStyle); err != nil {
		return err
	}

	for i, name := range weekdayHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	dayRow := 3
	next := month.AddDate(0, 1, 0)
	for day := month; day.Before(next); day = day.AddDate(0, 0, 1) {
		col := mondayIndex(day) + 1
		dayCell, _ := excelize.CoordinatesToCellName(col, dayRow)
		if err := f.SetCellValue(sheet, dayCell, day.Day()); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, dayCell, dayCell, dayStyle); err != nil {
			return err
		}

		entryCell, _ := excelize.CoordinatesToCellName(col, dayRow+1)
		if err := f.SetCellValue(sheet, entryCell, cellText(byDay[day.Format("2006-01-02")])); err != nil {
			return err
		}

		// Sunday closes the week
		if mondayIndex(day) == 6 {
			dayRow += 2
		}
	}
	return nil
}

func writeChangeLog(f *excelize.File, entries []model.ChangeLogEntry, headerStyle int) error {
	if _, err := f.NewSheet(logSheet); err != nil {
		return err
	}
	widths := []float64{20, 10, 12, 24, 24, 28, 14}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(logSheet, col, col, w); err != nil {
			return err
		}
	}

	headers := []string{"Timestamp", "Kind", "Date", "From", "To", "Reason", "By"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(logSheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(logSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for i, entry := range entries {
		row := i + 2
		values := []interface{}{
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			string(entry.Kind),
			entry.Date.Format("2006-01-02"),
			snapshotText(entry.Old),
			snapshotText(entry.New),
			entry.Reason,
			entry.UserName,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(logSheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func cellText(entries []model.ScheduledEntry) string {
	switch len(entries) {
	case 0:
		return ""
	case 1:
		return entries[0].Title
	}
	text := entries[0].Title
	for _, e := range entries[1:] {
		text += " / " + e.Title
	}
	return text
}

func snapshotText(s *model.ShiftSnapshot) string {
	if s == nil {
		return "-"
	}
	if s.TimeText == "" {
		return s.Title
	}
	return s.Title + " (" + s.TimeText + ")"
}

// mondayIndex maps a weekday to its Monday-first column, 0–6.
func mondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
