// Package source reads download records from tabular input files.
//
// CSV files (any extension other than .xlsx) are read with a header row;
// .xlsx workbooks are read from their first sheet. Records from several
// files are concatenated, in argument order, into one lazy sequence.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/handiism/spritefetch/internal/model"
)

// Columns names the header fields that map to record fields.
type Columns struct {
	Name     string `mapstructure:"name" yaml:"name" json:"name"`
	Category string `mapstructure:"category" yaml:"category" json:"category"`
	URL      string `mapstructure:"url" yaml:"url" json:"url"`
}

// DefaultColumns returns the headers of the Pokémon sprite data set.
func DefaultColumns() Columns {
	return Columns{Name: "Pokemon", Category: "Type1", URL: "Sprite"}
}

// ErrMissingColumn is returned when an input lacks a required header.
var ErrMissingColumn = errors.New("missing column")

// rowReader yields raw rows, header first.
type rowReader interface {
	Read() ([]string, error)
	Close() error
}

// Records returns a lazy sequence of normalized records read from paths.
//
// Iteration stops at the first error, which is yielded with a zero Record.
// A file that cannot be opened or lacks a required column is an error;
// rows shorter than the header are padded with empty fields.
//
// Example:
//
//	for rec, err := range source.Records(paths, source.DefaultColumns()) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(rec.Key())
//	}
func Records(paths []string, cols Columns) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		for _, path := range paths {
			if !readFile(path, cols, yield) {
				return
			}
		}
	}
}

// ReadAll materializes every record from paths into a batch.
func ReadAll(paths []string, cols Columns) ([]model.Record, error) {
	var batch []model.Record
	for rec, err := range Records(paths, cols) {
		if err != nil {
			return nil, err
		}
		batch = append(batch, rec)
	}
	return batch, nil
}

// readFile streams one file into yield. It returns false when iteration
// must stop.
func readFile(path string, cols Columns, yield func(model.Record, error) bool) bool {
	rr, err := openRows(path)
	if err != nil {
		yield(model.Record{}, fmt.Errorf("open %s: %w", path, err))
		return false
	}
	defer rr.Close()

	header, err := rr.Read()
	if errors.Is(err, io.EOF) {
		// An empty file contributes no records.
		return true
	}
	if err != nil {
		yield(model.Record{}, fmt.Errorf("read %s: %w", path, err))
		return false
	}

	idx, err := columnIndex(header, cols)
	if err != nil {
		yield(model.Record{}, fmt.Errorf("%s: %w", path, err))
		return false
	}

	line := 1
	for {
		row, err := rr.Read()
		line++
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			yield(model.Record{}, fmt.Errorf("read %s line %d: %w", path, line, err))
			return false
		}
		if blank(row) {
			continue
		}

		rec := model.NewRecord(field(row, idx[0]), field(row, idx[1]), field(row, idx[2]))
		if !yield(rec, nil) {
			return false
		}
	}
}

func columnIndex(header []string, cols Columns) ([3]int, error) {
	var idx [3]int
	for i, want := range []string{cols.Name, cols.Category, cols.URL} {
		idx[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), want) {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return idx, fmt.Errorf("%w %q", ErrMissingColumn, want)
		}
	}
	return idx, nil
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func openRows(path string) (rowReader, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return openXLSX(path)
	}
	return openCSV(path)
}

type csvRows struct {
	f *os.File
	r *csv.Reader
}

func openCSV(path string) (*csvRows, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return &csvRows{f: f, r: r}, nil
}

func (c *csvRows) Read() ([]string, error) { return c.r.Read() }
func (c *csvRows) Close() error            { return c.f.Close() }

type xlsxRows struct {
	f    *excelize.File
	rows *excelize.Rows
}

func openXLSX(path string) (*xlsxRows, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	sheet := f.GetSheetName(0)
	if sheet == "" {
		f.Close()
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &xlsxRows{f: f, rows: rows}, nil
}

func (x *xlsxRows) Read() ([]string, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return x.rows.Columns()
}

func (x *xlsxRows) Close() error {
	x.rows.Close()
	return x.f.Close()
}
