// Package ics renders shift records as an iCalendar document and owns
// the UID scheme that keeps re-exported shifts updatable in place.
package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"shiftcal/internal/model"
)

const prodID = "-//shiftcal//Shift Roster//EN"

// UID returns the calendar UID for one person's shift on one date. It
// is a pure function of the lowercased trimmed name and the ISO date;
// start and end times are deliberately excluded, so a shift moved to a
// different time slot on the same day keeps its UID and calendar
// clients update the existing entry instead of adding a duplicate.
//
// The derivation is fixed. Changing the hash, the normalization or the
// truncation would orphan every event in previously imported calendars.
func UID(person string, date model.Date) string {
	norm := strings.ToLower(strings.TrimSpace(person)) + "_" + date.ISO()
	sum := sha256.Sum256([]byte(norm))
	return "shift-" + hex.EncodeToString(sum[:])[:24] + "@shiftcal"
}

// Summary renders the fixed event title for a person's shift.
func Summary(person string) string {
	return fmt.Sprintf("Shift [%s]", strings.TrimSpace(person))
}

// BuildOptions carries the rendering context for one calendar.
type BuildOptions struct {
	// Name is the person the calendar was filtered to, used for the
	// calendar display name.
	Name string
	// Location is the timezone the roster times are interpreted in.
	Location *time.Location
	// Stamp becomes each event's DTSTAMP. Passing the request's
	// reference time keeps repeated runs byte-identical.
	Stamp time.Time
}

// Build renders records into a serialized calendar plus the per-event
// view of what was written. Records are emitted in input order; callers
// pass them already sorted.
func Build(records []model.ShiftRecord, opts BuildOptions) ([]byte, []model.CalendarEvent) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName("Shifts: " + strings.TrimSpace(opts.Name))
	cal.SetXWRTimezone(loc.String())

	events := make([]model.CalendarEvent, 0, len(records))
	for _, rec := range records {
		ev := model.CalendarEvent{
			UID:      UID(rec.Person, rec.Date),
			Summary:  Summary(rec.Person),
			Start:    rec.Date.At(rec.Start, loc),
			End:      rec.Date.At(rec.End, loc),
			Timezone: loc.String(),
		}

		ve := cal.AddEvent(ev.UID)
		ve.SetDtStampTime(stamp.UTC())
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Summary)
		ve.SetDescription(fmt.Sprintf("%s %s-%s (%s)", rec.Date.ISO(), rec.Start, rec.End, loc))

		events = append(events, ev)
	}

	return []byte(cal.Serialize()), events
}
