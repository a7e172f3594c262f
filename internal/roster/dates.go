package roster

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"shiftcal/internal/model"
)

// Date labels in the roster name a day and month but no year; the year
// is inferred from a reference date. A date is allowed to sit a short
// way in the past (a roster published mid-week still covers days that
// already happened), but anything older than this window is taken to
// mean the same label next year. Covers rosters read in December for
// January weeks.
const pastWindow = 31 * 24 * time.Hour

// Excel serial dates far outside this range are more likely row numbers
// or stray values than real dates.
const (
	serialMin = 1000   // 1902
	serialMax = 200000 // well past any roster horizon
)

// dayPattern matches "26", "26th", "2nd", "3RD". The suffix is stripped
// and never checked against the numeral, so "2th" is accepted.
var dayPattern = regexp.MustCompile(`^([0-9]{1,2})(?:st|nd|rd|th)?$`)

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ResolveDate turns a date-row label into an absolute date. Accepted
// forms:
//
//   - "26th Jan", "26 January", "3rd feb" (ordinal day + month)
//   - "APRIL FOOLS!" as an alias for 1st Apr
//   - a bare Excel date serial, as raw XLSX cells deliver dates
//
// Labels without a year are resolved against ref: same year unless that
// would land more than a month in the past, then next year.
func ResolveDate(label string, ref time.Time) (model.Date, error) {
	s := strings.TrimSpace(label)
	if s == "" {
		return model.Date{}, &ParseError{Row: -1, Col: -1, Msg: "empty date label"}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < serialMin || f > serialMax {
			return model.Date{}, &ParseError{Row: -1, Col: -1, Value: s, Msg: "number is not a plausible date serial"}
		}
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return model.Date{}, &ParseError{Row: -1, Col: -1, Value: s, Msg: "bad date serial"}
		}
		return model.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
	}

	if strings.EqualFold(s, "APRIL FOOLS!") {
		return resolveYear(1, time.April, ref)
	}

	fields := strings.Fields(s)
	if len(fields) != 2 {
		return model.Date{}, &ParseError{Row: -1, Col: -1, Value: s, Msg: "unrecognized date label"}
	}

	m := dayPattern.FindStringSubmatch(strings.ToLower(fields[0]))
	if m == nil {
		return model.Date{}, &ParseError{Row: -1, Col: -1, Value: s, Msg: "unrecognized day of month"}
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return model.Date{}, &ParseError{Row: -1, Col: -1, Value: s, Msg: "day of month out of range"}
	}

	monthTok := strings.ToLower(strings.TrimSuffix(fields[1], "."))
	month, ok := monthNames[monthTok]
	if !ok {
		return model.Date{}, &ParseError{Row: -1, Col: -1, Value: s, Msg: "unrecognized month"}
	}

	return resolveYear(day, month, ref)
}

// resolveYear picks the year for a day/month pair relative to ref and
// validates the day against that year's month length, so Feb 29 only
// passes when the resolved year is a leap year.
func resolveYear(day int, month time.Month, ref time.Time) (model.Date, error) {
	year := ref.Year()

	// Compare with the day clamped so an overlong day (Feb 30) still
	// gets a year picked before it is rejected below.
	cmpDay := day
	if limit := daysInMonth(month, year); cmpDay > limit {
		cmpDay = limit
	}
	refDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	candidate := time.Date(year, month, cmpDay, 0, 0, 0, 0, time.UTC)
	if refDay.Sub(candidate) > pastWindow {
		year++
	}

	if day > daysInMonth(month, year) {
		return model.Date{}, &ParseError{
			Row: -1, Col: -1,
			Value: strconv.Itoa(day) + " " + month.String(),
			Msg:   "day does not exist in " + strconv.Itoa(year),
		}
	}
	return model.Date{Year: year, Month: month, Day: day}, nil
}

func daysInMonth(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
