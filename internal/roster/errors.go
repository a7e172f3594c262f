package roster

import "fmt"

// FormatError reports input whose overall structure cannot be
// recognized as a weekly roster grid: not a spreadsheet, no weekday
// header row, too few weekday columns. It aborts the conversion.
type FormatError struct {
	Sheet string
	Msg   string
}

func (e *FormatError) Error() string {
	if e.Sheet == "" {
		return e.Msg
	}
	return fmt.Sprintf("sheet %q: %s", e.Sheet, e.Msg)
}

// ParseError reports a recognized grid carrying a value that cannot be
// used, such as an unreadable date cell under a weekday header. Row and
// Col are zero-based; -1 means the error is not tied to a position.
type ParseError struct {
	Sheet string
	Row   int
	Col   int
	Value string
	Msg   string
}

func (e *ParseError) Error() string {
	msg := e.Msg
	if e.Value != "" {
		msg = fmt.Sprintf("%s: %q", e.Msg, e.Value)
	}
	if e.Sheet == "" {
		return msg
	}
	if e.Row < 0 {
		return fmt.Sprintf("sheet %q: %s", e.Sheet, msg)
	}
	return fmt.Sprintf("sheet %q row %d col %d: %s", e.Sheet, e.Row+1, e.Col+1, msg)
}
