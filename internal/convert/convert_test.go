package convert

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	testRef = time.Date(2025, time.January, 20, 8, 0, 0, 0, time.UTC)
	sydney  = mustLocation("Australia/Sydney")
)

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func testOptions() Options {
	return Options{Now: testRef, Location: sydney}
}

// buildXLSX renders one or more named sheets into an in-memory
// workbook.
func buildXLSX(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	first := true
	for name, rows := range sheets {
		if first {
			// Reuse the default sheet for the first entry.
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("new sheet %q: %v", name, err)
		}
		for r, row := range rows {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					t.Fatalf("cell name (%d,%d): %v", c, r, err)
				}
				if err := f.SetCellValue(name, cell, v); err != nil {
					t.Fatalf("set %s!%s: %v", name, cell, err)
				}
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// weekRows is the canonical single-week roster with the given time-slot
// rows appended under the header and date rows.
func weekRows(slots ...[]any) [][]any {
	rows := [][]any{
		{"", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		{"", "26th Jan", "27th Jan", "28th Jan", "29th Jan", "30th Jan", "31st Jan", "1st Feb"},
	}
	return append(rows, slots...)
}

func TestConvertScenario(t *testing.T) {
	t.Parallel()

	data := buildXLSX(t, map[string][][]any{
		"Week 1": weekRows(
			[]any{"09:00-17:00", "Alice", "Bob", "Charlie", "David", "Emma", "Finn", "Grace"},
		),
	})

	res, err := Convert(data, "Charlie", testOptions())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(res.Events), res.Events)
	}
	if len(res.Skipped) != 0 {
		t.Errorf("unexpected skips: %v", res.Skipped)
	}

	ev := res.Events[0]
	wantStart := time.Date(2025, time.January, 28, 9, 0, 0, 0, sydney)
	wantEnd := time.Date(2025, time.January, 28, 17, 0, 0, 0, sydney)
	if !ev.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", ev.Start, wantStart)
	}
	if !ev.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", ev.End, wantEnd)
	}
	if !strings.Contains(ev.Summary, "Charlie") {
		t.Errorf("Summary = %q, want it to name Charlie", ev.Summary)
	}

	text := string(res.ICS)
	if !strings.Contains(text, "UID:"+ev.UID) {
		t.Errorf("calendar missing UID line for %s", ev.UID)
	}
	if !strings.Contains(text, "SUMMARY:Shift [Charlie]") {
		t.Errorf("calendar missing summary line:\n%s", text)
	}
}

func TestConvertIdempotent(t *testing.T) {
	t.Parallel()

	data := buildXLSX(t, map[string][][]any{
		"Week 1": weekRows(
			[]any{"09:00-17:00", "Alice", "", "Charlie", "", "Charlie", "", ""},
			[]any{"18:00-22:00", "Charlie", "", "", "", "", "", ""},
		),
	})

	a, err := Convert(data, "Charlie", testOptions())
	if err != nil {
		t.Fatalf("first Convert: %v", err)
	}
	b, err := Convert(data, "Charlie", testOptions())
	if err != nil {
		t.Fatalf("second Convert: %v", err)
	}

	if len(a.Events) != len(b.Events) {
		t.Fatalf("event counts differ: %d vs %d", len(a.Events), len(b.Events))
	}
	for i := range a.Events {
		if a.Events[i].UID != b.Events[i].UID {
			t.Errorf("event %d UID differs: %s vs %s", i, a.Events[i].UID, b.Events[i].UID)
		}
	}
	if !bytes.Equal(a.ICS, b.ICS) {
		t.Error("same input and reference time must produce identical calendars")
	}
}

// Moving a shift to a different time slot on the same date must keep
// the UID so calendar clients update the entry instead of duplicating.
func TestConvertUIDSurvivesTimeChange(t *testing.T) {
	t.Parallel()

	before := buildXLSX(t, map[string][][]any{
		"Week 1": weekRows([]any{"09:00-17:00", "Alice", "", "", "", "", "", ""}),
	})
	after := buildXLSX(t, map[string][][]any{
		"Week 1": weekRows([]any{"10:00-15:00", "Alice", "", "", "", "", "", ""}),
	})

	resA, err := Convert(before, "Alice", testOptions())
	if err != nil {
		t.Fatalf("Convert before: %v", err)
	}
	resB, err := Convert(after, "Alice", testOptions())
	if err != nil {
		t.Fatalf("Convert after: %v", err)
	}
	if len(resA.Events) != 1 || len(resB.Events) != 1 {
		t.Fatalf("want one event each, got %d and %d", len(resA.Events), len(resB.Events))
	}
	if resA.Events[0].UID != resB.Events[0].UID {
		t.Errorf("UID changed with the time slot: %s vs %s", resA.Events[0].UID, resB.Events[0].UID)
	}
	if resA.Events[0].Start.Equal(resB.Events[0].Start) {
		t.Error("fixture did not actually move the shift")
	}
}

func TestConvertNameIsolation(t *testing.T) {
	t.Parallel()

	data := buildXLSX(t, map[string][][]any{
		"Week 1": weekRows(
			[]any{"09:00-17:00", "Benjamin", "", "", "", "", "", "Ben"},
		),
	})

	res, err := Convert(data, "Ben", testOptions())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want only the literal Ben cell", len(res.Events))
	}
	want := time.Date(2025, time.February, 1, 9, 0, 0, 0, sydney)
	if !res.Events[0].Start.Equal(want) {
		t.Errorf("matched the wrong cell: start %v, want %v", res.Events[0].Start, want)
	}
}

func TestConvertMalformedRowTolerance(t *testing.T) {
	t.Parallel()

	data := buildXLSX(t, map[string][][]any{
		"Week 1": weekRows(
			[]any{"09:00-17:00", "Alice", "", "", "", "", "", ""},
			[]any{"ABCD", "Alice", "", "", "", "", "", ""},
			[]any{"18:00-22:00", "", "Alice", "", "", "", "", ""},
		),
	})

	res, err := Convert(data, "Alice", testOptions())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want the 2 valid rows", len(res.Events))
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != "bad time label" {
		t.Fatalf("skipped = %v, want one bad time label", res.Skipped)
	}
}

func TestConvertAbsentNameIsSuccess(t *testing.T) {
	t.Parallel()

	data := buildXLSX(t, map[string][][]any{
		"Week 1": weekRows(
			[]any{"09:00-17:00", "Alice", "Bob", "Charlie", "David", "Emma", "Finn", "Grace"},
		),
	})

	res, err := Convert(data, "Zoe", testOptions())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(res.Events) != 0 {
		t.Fatalf("got %d events, want 0", len(res.Events))
	}
	if !strings.Contains(string(res.ICS), "BEGIN:VCALENDAR") {
		t.Error("empty result must still be a well-formed calendar")
	}
}

func TestConvertInputValidation(t *testing.T) {
	t.Parallel()

	valid := buildXLSX(t, map[string][][]any{
		"Week 1": weekRows([]any{"09:00-17:00", "Alice", "", "", "", "", "", ""}),
	})

	tests := []struct {
		name     string
		data     []byte
		search   string
		wantKind Kind
	}{
		{name: "empty name", data: valid, search: "", wantKind: KindBadRequest},
		{name: "whitespace name", data: valid, search: "   ", wantKind: KindBadRequest},
		{name: "junk bytes", data: []byte("not a workbook"), search: "Alice", wantKind: KindFormat},
		{name: "empty bytes", data: nil, search: "Alice", wantKind: KindFormat},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Convert(tt.data, tt.search, testOptions())
			if err == nil {
				t.Fatal("Convert succeeded, want error")
			}
			if got := Classify(err); got != tt.wantKind {
				t.Errorf("Classify(%v) = %v, want %v", err, got, tt.wantKind)
			}
		})
	}
}

func TestConvertBadDateCellAborts(t *testing.T) {
	t.Parallel()

	rows := weekRows([]any{"09:00-17:00", "Alice", "", "", "", "", "", ""})
	rows[1][4] = "sometime soon"
	data := buildXLSX(t, map[string][][]any{"Week 1": rows})

	_, err := Convert(data, "Alice", testOptions())
	if err == nil {
		t.Fatal("Convert succeeded, want parse error")
	}
	if got := Classify(err); got != KindParse {
		t.Errorf("Classify(%v) = %v, want %v", err, got, KindParse)
	}
}

func TestConvertMultiSheet(t *testing.T) {
	t.Parallel()

	week2 := [][]any{
		{"", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		{"", "2nd Feb", "3rd Feb", "4th Feb", "5th Feb", "6th Feb", "7th Feb", "8th Feb"},
		{"10:00-18:00", "", "Charlie", "", "", "", "", ""},
	}
	data := buildXLSX(t, map[string][][]any{
		"Notes":  {{"reminders"}, {"order more coffee"}},
		"Week 1": weekRows([]any{"09:00-17:00", "", "", "Charlie", "", "", "", ""}),
		"Week 2": week2,
	})

	res, err := Convert(data, "Charlie", testOptions())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want one per week: %+v", len(res.Events), res.Events)
	}
	if got := res.Events[0].Start; !got.Equal(time.Date(2025, time.January, 28, 9, 0, 0, 0, sydney)) {
		t.Errorf("events[0].Start = %v, want 28 Jan", got)
	}
	if got := res.Events[1].Start; !got.Equal(time.Date(2025, time.February, 3, 10, 0, 0, 0, sydney)) {
		t.Errorf("events[1].Start = %v, want 3 Feb", got)
	}

	// The Notes sheet has no grid; it must show up as a sheet-level
	// skip, not an error.
	var sheetSkips int
	for _, sk := range res.Skipped {
		if sk.Sheet == "Notes" && sk.Row < 0 {
			sheetSkips++
		}
	}
	if sheetSkips != 1 {
		t.Errorf("skipped = %v, want one sheet-level skip for Notes", res.Skipped)
	}
}

func TestConvertAllSheetsFailing(t *testing.T) {
	t.Parallel()

	data := buildXLSX(t, map[string][][]any{
		"Notes": {{"reminders"}, {"order more coffee"}},
	})

	_, err := Convert(data, "Charlie", testOptions())
	if err == nil {
		t.Fatal("Convert succeeded, want format error")
	}
	if got := Classify(err); got != KindFormat {
		t.Errorf("Classify(%v) = %v, want %v", err, got, KindFormat)
	}
}

func TestConvertDefaultsToUTC(t *testing.T) {
	t.Parallel()

	data := buildXLSX(t, map[string][][]any{
		"Week 1": weekRows([]any{"09:00-17:00", "Alice", "", "", "", "", "", ""}),
	})

	res, err := Convert(data, "Alice", Options{Now: testRef})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Events[0].Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", res.Events[0].Timezone)
	}
	want := time.Date(2025, time.January, 26, 9, 0, 0, 0, time.UTC)
	if !res.Events[0].Start.Equal(want) {
		t.Errorf("Start = %v, want %v", res.Events[0].Start, want)
	}
}

// Duplicate matches for one date collapse to the earliest start so the
// calendar never carries two events with one UID.
func TestConvertDuplicateDateCollapses(t *testing.T) {
	t.Parallel()

	data := buildXLSX(t, map[string][][]any{
		"Week 1": weekRows(
			[]any{"13:00-21:00", "Alice", "", "", "", "", "", ""},
			[]any{"09:00-12:00", "Alice", "", "", "", "", "", ""},
		),
	})

	res, err := Convert(data, "Alice", testOptions())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(res.Events))
	}
	if got := res.Events[0].Start; !got.Equal(time.Date(2025, time.January, 26, 9, 0, 0, 0, sydney)) {
		t.Errorf("Start = %v, want the 09:00 slot", got)
	}
	if len(res.Skipped) != 1 || !strings.HasPrefix(res.Skipped[0].Reason, "duplicate shift") {
		t.Errorf("skipped = %v, want one duplicate", res.Skipped)
	}

	uids := map[string]bool{}
	for _, ev := range res.Events {
		if uids[ev.UID] {
			t.Errorf("UID %s repeated in output", ev.UID)
		}
		uids[ev.UID] = true
	}
}
