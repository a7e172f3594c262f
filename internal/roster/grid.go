package roster

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"shiftcal/internal/model"
)

// Grid is one sheet's recognized weekly layout: the weekday columns
// with their resolved dates, the parseable time-slot rows, and the
// diagnostics for rows that were skipped along the way.
type Grid struct {
	Sheet    Sheet
	Columns  []model.WeekdayColumn
	Slots    []model.TimeSlotRow
	LabelCol int
	Skipped  []model.SkippedRow
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// timeRangePattern matches labels like "9:00-17:30" or "09:00 - 17:30".
var timeRangePattern = regexp.MustCompile(`^([0-9]{1,2}):([0-9]{2})\s*-\s*([0-9]{1,2}):([0-9]{2})$`)

// ParseGrid locates the weekly grid on one sheet. The header is the
// first row holding at least 5 distinct weekday names; the row below it
// carries the date labels, resolved against ref; every later row whose
// label column parses as a time range becomes a time slot.
func ParseGrid(sheet Sheet, ref time.Time) (*Grid, error) {
	headerRow, cols, err := findHeader(sheet)
	if err != nil {
		return nil, err
	}

	dateRow := headerRow + 1
	if dateRow >= len(sheet.Cells) {
		return nil, &FormatError{Sheet: sheet.Name, Msg: "no date row below the weekday header"}
	}

	columns := make([]model.WeekdayColumn, 0, len(cols))
	for _, wc := range cols {
		label := sheet.Cell(dateRow, wc.Col)
		date, err := ResolveDate(label, ref)
		if err != nil {
			if pe, ok := err.(*ParseError); ok {
				pe.Sheet = sheet.Name
				pe.Row = dateRow
				pe.Col = wc.Col
				return nil, pe
			}
			return nil, err
		}
		wc.Date = date
		columns = append(columns, wc)
	}

	labelCol := columns[0].Col - 1
	if labelCol < 0 {
		return nil, &FormatError{Sheet: sheet.Name, Msg: "no label column left of the weekday grid"}
	}

	g := &Grid{Sheet: sheet, Columns: columns, LabelCol: labelCol}
	for r := dateRow + 1; r < len(sheet.Cells); r++ {
		label := sheet.Cell(r, labelCol)
		if label == "" {
			continue
		}
		slot, reason := parseTimeRange(r, label)
		if reason != "" {
			g.Skipped = append(g.Skipped, model.SkippedRow{
				Sheet: sheet.Name, Row: r, Label: label, Reason: reason,
			})
			continue
		}
		g.Slots = append(g.Slots, slot)
	}
	return g, nil
}

// findHeader returns the first row holding at least 5 distinct weekday
// names, with one WeekdayColumn per weekday cell in column order. A
// repeated weekday in that row makes the grid ambiguous.
func findHeader(sheet Sheet) (int, []model.WeekdayColumn, error) {
	for r := range sheet.Cells {
		var cols []model.WeekdayColumn
		seen := make(map[time.Weekday]bool)
		dup := false
		for c := range sheet.Cells[r] {
			wd, ok := weekdayNames[strings.ToLower(sheet.Cell(r, c))]
			if !ok {
				continue
			}
			if seen[wd] {
				dup = true
				continue
			}
			seen[wd] = true
			cols = append(cols, model.WeekdayColumn{Col: c, Weekday: wd})
		}
		if len(cols) < 5 {
			continue
		}
		if dup {
			return 0, nil, &FormatError{Sheet: sheet.Name, Msg: "weekday repeated in header row " + strconv.Itoa(r+1)}
		}
		return r, cols, nil
	}
	return 0, nil, &FormatError{Sheet: sheet.Name, Msg: "no weekday header row found"}
}

// parseTimeRange parses a slot label like "09:00-17:00". It returns a
// skip reason instead of an error: bad labels drop the row, never the
// conversion.
func parseTimeRange(row int, label string) (model.TimeSlotRow, string) {
	m := timeRangePattern.FindStringSubmatch(label)
	if m == nil {
		return model.TimeSlotRow{}, "bad time label"
	}
	start, ok1 := clockTime(m[1], m[2])
	end, ok2 := clockTime(m[3], m[4])
	if !ok1 || !ok2 {
		return model.TimeSlotRow{}, "bad time label"
	}
	if !start.Before(end) {
		return model.TimeSlotRow{}, "end not after start"
	}
	return model.TimeSlotRow{Row: row, Start: start, End: end}, ""
}

func clockTime(hh, mm string) (model.TimeOfDay, bool) {
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h > 23 || m > 59 {
		return model.TimeOfDay{}, false
	}
	return model.TimeOfDay{Hour: h, Minute: m}, true
}
