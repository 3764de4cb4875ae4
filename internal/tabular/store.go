package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// ErrUnavailable reports that the table file does not exist. Callers decide
// whether that means "empty table" (reference table at bootstrap) or a hard
// failure (submitted table during append).
var ErrUnavailable = errors.New("table unavailable")

// Row is one table row keyed by column name.
type Row map[string]string

// Store reads and appends a row-oriented table kept in a single file.
// The format is chosen by extension: .xlsx/.xlsm via excelize, anything
// else is treated as CSV.
//
// Append is a whole-file read-modify-write; the mutex serializes writers
// within this process only. A crash mid-write can lose the file, a known
// limitation of the single-file design.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the underlying table file.
func (s *Store) Path() string { return s.path }

func (s *Store) isExcel() bool {
	ext := strings.ToLower(filepath.Ext(s.path))
	return ext == ".xlsx" || ext == ".xlsm"
}

// Load returns the header and every row of the table. A missing file yields
// ErrUnavailable; an existing but empty file yields an empty table.
func (s *Store) Load() ([]string, []Row, error) {
	var raw [][]string
	var err error
	if s.isExcel() {
		raw, err = readExcel(s.path)
	} else {
		raw, err = readCSV(s.path)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 {
		return nil, nil, nil
	}
	header := raw[0]
	rows := make([]Row, 0, len(raw)-1)
	for _, rec := range raw[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// Append adds one record after all existing rows and rewrites the file.
// Existing rows and header order are preserved; columns the record
// introduces are appended to the header in sorted order (schema widens,
// never narrows). An absent file starts an empty table.
func (s *Store) Append(record map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, rows, err := s.Load()
	if err != nil && !errors.Is(err, ErrUnavailable) {
		return err
	}
	header = widen(header, record)

	out := make([][]string, 0, len(rows)+2)
	out = append(out, header)
	for _, row := range rows {
		out = append(out, project(header, row))
	}
	out = append(out, project(header, record))

	if s.isExcel() {
		return writeExcel(s.path, out)
	}
	return writeCSV(s.path, out)
}

// widen appends any columns of record missing from header, in sorted order
// so repeated rewrites stay deterministic.
func widen(header []string, record map[string]string) []string {
	seen := make(map[string]bool, len(header))
	for _, col := range header {
		seen[col] = true
	}
	extra := make([]string, 0)
	for col := range record {
		if !seen[col] {
			extra = append(extra, col)
		}
	}
	sort.Strings(extra)
	return append(header, extra...)
}

func project(header []string, row map[string]string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = row[col]
	}
	return out
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrUnavailable)
		}
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	return recs, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func readExcel(path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrUnavailable)
		}
		return nil, fmt.Errorf("stat xlsx %s: %w", path, err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx %s: %w", path, err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read xlsx %s: %w", path, err)
	}
	return rows, nil
}

func writeExcel(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, rec := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		vals := make([]interface{}, len(rec))
		for j, v := range rec {
			vals[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx %s: %w", path, err)
	}
	return nil
}
