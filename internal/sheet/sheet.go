// Package sheet reads company rows from xlsx workbooks and writes analysis
// results back out, for batch runs.
package sheet

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/AntoineDubuc/theodore/internal/model"
)

// Row is one input company. Line is the 1-based spreadsheet row, kept for
// error reporting.
type Row struct {
	Name    string
	Website string
	Line    int
}

// ReadOptions configures the input parser.
type ReadOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // header rows to skip, default 1
}

// ReadCompanies reads {name, website} rows from an xlsx file. Column A is
// the company name, column B the optional website. Blank-name rows are
// skipped.
func ReadCompanies(path string, opts ReadOptions) ([]Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	skip := opts.SkipRows
	if skip == 0 {
		skip = 1
	}

	var rows []Row
	for i, row := range sheet.Rows {
		if i < skip {
			continue
		}
		name := cellAt(row, 0)
		if name == "" {
			continue
		}
		rows = append(rows, Row{
			Name:    name,
			Website: cellAt(row, 1),
			Line:    i + 1,
		})
	}
	return rows, nil
}

// outputHeader lists the result sheet's columns: identity, status, then one
// column per record field in schema order.
func outputHeader() []string {
	header := []string{"Name", "Website", "Status", "Error", "Warnings", "Cost USD"}
	for _, f := range model.AllFields() {
		header = append(header, string(f))
	}
	return header
}

// WriteResults writes one row per analyzed company to a new xlsx file.
// Input order is preserved.
func WriteResults(path string, results []RowResult) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "sheet: add sheet")
	}

	writeRow(sheet, outputHeader())
	for _, r := range results {
		writeRow(sheet, resultCells(r))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "sheet: save file")
	}
	return nil
}

func resultCells(r RowResult) []string {
	res := r.Result
	cells := []string{
		r.Row.Name,
		r.Row.Website,
		string(res.Outcome),
		res.Message,
		strings.Join(res.Warnings, "; "),
		fmt.Sprintf("%.4f", res.Usage.CostUSD),
	}
	for _, f := range model.AllFields() {
		if res.Record == nil || !res.Record.Present(f) {
			cells = append(cells, "")
			continue
		}
		cells = append(cells, fieldCell(res.Record.Fields[f]))
	}
	return cells
}

// fieldCell flattens a typed field value into a single cell.
func fieldCell(fv model.FieldValue) string {
	switch fv.Kind {
	case model.KindText:
		return fv.Text
	case model.KindList:
		return strings.Join(fv.List, "; ")
	case model.KindPeople:
		parts := make([]string, 0, len(fv.People))
		for _, p := range fv.People {
			if p.Role != "" {
				parts = append(parts, p.Name+" ("+p.Role+")")
			} else {
				parts = append(parts, p.Name)
			}
		}
		return strings.Join(parts, "; ")
	case model.KindBool:
		if fv.Bool {
			return "yes"
		}
		return "no"
	case model.KindScore:
		return fmt.Sprintf("%.2f", fv.Score)
	default:
		return ""
	}
}

func writeRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

func getSheet(f *xlsx.File, opts ReadOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("sheet: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("sheet: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func cellAt(row *xlsx.Row, i int) string {
	if i >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[i].String())
}
