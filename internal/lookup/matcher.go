package lookup

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scholarseva/intake/internal/tabular"
)

// Unknown marks a date-of-birth cell that could not be parsed. Rows carrying
// it never match a lookup.
const Unknown = "unknown"

// SchemaError reports that the reference table is missing one or both of the
// key columns. This is a configuration problem to show the operator, not a
// crash.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("reference table missing required column(s): %s", strings.Join(e.Missing, ", "))
}

// Accepted column spellings, compared case-insensitively after trimming.
var (
	admissionCols = []string{"admission number", "admission no", "admission_no"}
	dobCols       = []string{"date of birth", "date_of_birth", "dob"}
)

// Accepted date layouts. Values are canonicalized to YYYY-MM-DD.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"2 Jan 2006",
	"02-Jan-2006",
	"January 2, 2006",
	time.RFC3339,
}

// Table is a normalized reference table ready for key lookups.
type Table struct {
	rows         []tabular.Row
	admissionCol string
	dobCol       string
}

// Len reports the number of rows in the table.
func (t *Table) Len() int { return len(t.rows) }

// UnknownDOBCount reports how many rows carry an unparsable date of birth.
// Those rows can never match a lookup.
func (t *Table) UnknownDOBCount() int {
	if t.dobCol == "" {
		return 0
	}
	n := 0
	for _, row := range t.rows {
		if row[t.dobCol] == Unknown {
			n++
		}
	}
	return n
}

// Prepare normalizes a raw reference table: column names are trimmed, every
// date-of-birth value is reparsed and reformatted to YYYY-MM-DD (unparsable
// values become Unknown). Returns a *SchemaError when either key column is
// absent after normalization. An empty table (no header) prepares cleanly
// and matches nothing.
func Prepare(header []string, rows []tabular.Row) (*Table, error) {
	if len(header) == 0 {
		return &Table{}, nil
	}

	trimmed := make(map[string]string, len(header)) // original -> trimmed
	var admissionCol, dobCol string
	for _, col := range header {
		name := strings.TrimSpace(col)
		trimmed[col] = name
		if admissionCol == "" && matchesAny(name, admissionCols) {
			admissionCol = name
		}
		if dobCol == "" && matchesAny(name, dobCols) {
			dobCol = name
		}
	}

	var missing []string
	if admissionCol == "" {
		missing = append(missing, "Admission Number")
	}
	if dobCol == "" {
		missing = append(missing, "Date of Birth")
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	normalized := make([]tabular.Row, 0, len(rows))
	for _, row := range rows {
		out := make(tabular.Row, len(row))
		for col, val := range row {
			out[trimmed[col]] = val
		}
		out[dobCol] = canonicalDate(out[dobCol])
		normalized = append(normalized, out)
	}

	return &Table{rows: normalized, admissionCol: admissionCol, dobCol: dobCol}, nil
}

// FromStore loads the reference table through the store and prepares it.
// An absent file is treated as an empty table, not an error, so the service
// can boot before the reference data is provisioned.
func FromStore(s *tabular.Store) (*Table, error) {
	header, rows, err := s.Load()
	if err != nil {
		if errors.Is(err, tabular.ErrUnavailable) {
			return &Table{}, nil
		}
		return nil, err
	}
	return Prepare(header, rows)
}

// Find resolves the compound lookup key to at most one row. The admission
// number matches by exact equality after trimming both sides; the date of
// birth matches by canonical-form equality. Zero or multiple matching rows
// both report "not found": ties are treated as no unique match.
func (t *Table) Find(admissionNo, dob string) (tabular.Row, bool) {
	if t.admissionCol == "" {
		return nil, false
	}
	key := strings.TrimSpace(admissionNo)
	want := canonicalDate(strings.TrimSpace(dob))
	if key == "" || want == Unknown {
		return nil, false
	}

	var match tabular.Row
	for _, row := range t.rows {
		if strings.TrimSpace(row[t.admissionCol]) != key {
			continue
		}
		if row[t.dobCol] != want || row[t.dobCol] == Unknown {
			continue
		}
		if match != nil {
			return nil, false
		}
		match = row
	}
	if match == nil {
		return nil, false
	}
	return match, true
}

func matchesAny(name string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(name, c) {
			return true
		}
	}
	return false
}

// canonicalDate reformats v to YYYY-MM-DD, or Unknown when no accepted
// layout parses it.
func canonicalDate(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return Unknown
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.Format("2006-01-02")
		}
	}
	return Unknown
}
