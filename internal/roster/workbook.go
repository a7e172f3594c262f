// Package roster turns raw spreadsheet bytes into shift records: it
// decodes the workbook, locates the weekly grid on each sheet, resolves
// the date labels and extracts the cells matching one person's name.
package roster

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet flattened to cell text. Rows may be ragged;
// out-of-range reads yield "".
type Sheet struct {
	Name  string
	Cells [][]string
}

// Cell returns the trimmed text at (row, col), or "" when out of range.
func (s Sheet) Cell(row, col int) string {
	if row < 0 || row >= len(s.Cells) {
		return ""
	}
	r := s.Cells[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

var (
	zipMagic  = []byte{0x50, 0x4b, 0x03, 0x04}
	ole2Magic = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}
)

// OpenWorkbook decodes spreadsheet bytes into sheets of cell text. The
// format is sniffed from the file signature: ZIP means XLSX, an OLE2
// compound document means legacy XLS. Anything else is a FormatError.
func OpenWorkbook(data []byte) ([]Sheet, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return openXLSX(data)
	case bytes.HasPrefix(data, ole2Magic):
		return openXLS(data)
	default:
		return nil, &FormatError{Msg: "unrecognized spreadsheet format"}
	}
}

// openXLSX reads the visible sheets of an XLSX workbook. Raw cell
// values are requested so date cells surface as Excel serial numbers
// instead of locale-formatted text.
func openXLSX(data []byte) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &FormatError{Msg: fmt.Sprintf("open xlsx: %v", err)}
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		visible, err := f.GetSheetVisible(name)
		if err != nil || !visible {
			continue
		}
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, &FormatError{Sheet: name, Msg: fmt.Sprintf("read rows: %v", err)}
		}
		sheets = append(sheets, Sheet{Name: name, Cells: rows})
	}
	if len(sheets) == 0 {
		return nil, &FormatError{Msg: "workbook has no visible sheets"}
	}
	return sheets, nil
}

func openXLS(data []byte) ([]Sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, &FormatError{Msg: fmt.Sprintf("open xls: %v", err)}
	}

	var sheets []Sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		cells := make([][]string, 0, int(ws.MaxRow)+1)
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				cells = append(cells, nil)
				continue
			}
			// Row.Col returns "" for gaps, so starting at column 0
			// keeps grid indexes aligned with the sheet. LastCol is
			// one past the last populated cell.
			line := make([]string, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				line[c] = row.Col(c)
			}
			cells = append(cells, line)
		}
		sheets = append(sheets, Sheet{Name: ws.Name, Cells: cells})
	}
	if len(sheets) == 0 {
		return nil, &FormatError{Msg: "workbook has no sheets"}
	}
	return sheets, nil
}
