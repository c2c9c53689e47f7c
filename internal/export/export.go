// Package export writes the name index as a spreadsheet of names and their
// detail page links.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/poku-e/pokenav/internal/nameindex"
	"github.com/poku-e/pokenav/internal/search"
)

var header = []string{"name", "detail_url"}

// Write picks the format from the file extension (.csv or .xlsx).
func Write(path string, idx *nameindex.Index, detailPage string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteCSV(path, idx, detailPage)
	case ".xlsx":
		return WriteXLSX(path, idx, detailPage)
	default:
		return fmt.Errorf("out %q must end with .csv or .xlsx", path)
	}
}

func WriteCSV(path string, idx *nameindex.Index, detailPage string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, name := range idx.Names() {
		if err := w.Write([]string{name, search.DetailURL(detailPage, name)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func WriteXLSX(path string, idx *nameindex.Index, detailPage string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", []interface{}{header[0], header[1]}); err != nil {
		return err
	}
	for i, name := range idx.Names() {
		cell, _ := excelize.CoordinatesToCellName(1, i+2) // A2, A3, ...
		if err := sw.SetRow(cell, []interface{}{name, search.DetailURL(detailPage, name)}); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}
