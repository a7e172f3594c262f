package roster

import (
	"sort"
	"strings"

	"shiftcal/internal/model"
)

// MatchName reports whether a cell names exactly the person searched
// for: both sides trimmed, compared case-insensitively. No substring
// matching, so "Ben" never matches "Benjamin", and a cell listing
// several names never matches any one of them.
func MatchName(cell, name string) bool {
	cell = strings.TrimSpace(cell)
	name = strings.TrimSpace(name)
	if cell == "" || name == "" {
		return false
	}
	return strings.EqualFold(cell, name)
}

type match struct {
	rec   model.ShiftRecord
	sheet string
	row   int
}

// ExtractShifts walks the parsed grids and returns the records whose
// cell matches name, ordered by date then start time. When the same
// date matches more than once (within a sheet or across sheets) the
// earliest-starting record wins and the rest are reported as skipped,
// keeping one event per date so UIDs stay unique.
func ExtractShifts(grids []*Grid, name string) ([]model.ShiftRecord, []model.SkippedRow) {
	var matches []match
	for _, g := range grids {
		for _, slot := range g.Slots {
			for _, col := range g.Columns {
				cell := g.Sheet.Cell(slot.Row, col.Col)
				if !MatchName(cell, name) {
					continue
				}
				matches = append(matches, match{
					rec: model.ShiftRecord{
						Person: cell,
						Date:   col.Date,
						Start:  slot.Start,
						End:    slot.End,
					},
					sheet: g.Sheet.Name,
					row:   slot.Row,
				})
			}
		}
	}

	// Total order: date, then start, then end, then position. The
	// position tiebreak keeps duplicate reporting deterministic no
	// matter how the grids were traversed.
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.rec.Date != b.rec.Date {
			return a.rec.Date.Before(b.rec.Date)
		}
		if a.rec.Start != b.rec.Start {
			return a.rec.Start.Before(b.rec.Start)
		}
		if a.rec.End != b.rec.End {
			return a.rec.End.Before(b.rec.End)
		}
		if a.sheet != b.sheet {
			return a.sheet < b.sheet
		}
		return a.row < b.row
	})

	var (
		records []model.ShiftRecord
		skipped []model.SkippedRow
		last    model.Date
	)
	for i, m := range matches {
		if i > 0 && m.rec.Date == last {
			skipped = append(skipped, model.SkippedRow{
				Sheet:  m.sheet,
				Row:    m.row,
				Label:  m.rec.Start.String() + "-" + m.rec.End.String(),
				Reason: "duplicate shift for " + m.rec.Date.ISO(),
			})
			continue
		}
		records = append(records, m.rec)
		last = m.rec.Date
	}
	return records, skipped
}
