// Package convert runs the whole conversion: spreadsheet bytes in, ICS
// calendar filtered to one person out. It is pure and reentrant; every
// call works only on its arguments, so concurrent requests need no
// locking.
package convert

import (
	"strings"
	"time"

	"shiftcal/internal/ics"
	"shiftcal/internal/model"
	"shiftcal/internal/roster"
)

// Options carries the request context the conversion depends on.
// Leaving Now zero uses the wall clock; leaving Location nil renders
// event times in UTC. Callers normally pass the configured zone.
type Options struct {
	// Now anchors year inference for the roster's date labels and is
	// stamped into the output as DTSTAMP. Inject a fixed value for
	// reproducible output.
	Now time.Time
	// Location is the timezone roster times are interpreted in.
	Location *time.Location
}

// Result is a successful conversion. Zero matching shifts is still a
// success: ICS holds a well-formed empty calendar.
type Result struct {
	ICS     []byte
	Events  []model.CalendarEvent
	Records []model.ShiftRecord
	Skipped []model.SkippedRow
}

// Convert parses the workbook, extracts name's shifts and renders them
// as a calendar.
//
// Failure policy: unusable input (not a spreadsheet, no recognizable
// grid on any sheet, an unreadable date cell) aborts with a typed
// error. Row-level trouble inside an otherwise usable grid only skips
// the row, reported in Result.Skipped. With several visible sheets,
// sheets that fail to parse are skipped the same way as long as at
// least one sheet yields a grid; when every sheet fails the first
// error is returned verbatim.
func Convert(data []byte, name string, opts Options) (*Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &RequestError{Msg: "search name is required"}
	}

	ref := opts.Now
	if ref.IsZero() {
		ref = time.Now()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	sheets, err := roster.OpenWorkbook(data)
	if err != nil {
		return nil, err
	}

	var (
		grids    []*roster.Grid
		skipped  []model.SkippedRow
		firstErr error
	)
	for _, sheet := range sheets {
		grid, err := roster.ParseGrid(sheet, ref)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			skipped = append(skipped, model.SkippedRow{
				Sheet: sheet.Name, Row: -1, Reason: err.Error(),
			})
			continue
		}
		grids = append(grids, grid)
		skipped = append(skipped, grid.Skipped...)
	}
	if len(grids) == 0 {
		return nil, firstErr
	}

	records, dupes := roster.ExtractShifts(grids, name)
	skipped = append(skipped, dupes...)

	icsBytes, events := ics.Build(records, ics.BuildOptions{
		Name:     name,
		Location: loc,
		Stamp:    ref,
	})

	return &Result{
		ICS:     icsBytes,
		Events:  events,
		Records: records,
		Skipped: skipped,
	}, nil
}
