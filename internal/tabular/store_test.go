package tabular

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "absent.csv"))
	_, _, err := s.Load()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnavailable))
}

func TestAppendPreservesOrderAndWidensSchema(t *testing.T) {
	for _, ext := range []string{".csv", ".xlsx"} {
		t.Run(ext, func(t *testing.T) {
			s := NewStore(filepath.Join(t.TempDir(), "submitted"+ext))

			r1 := map[string]string{"student_name": "Asha", "admission_no": "A001"}
			r2 := map[string]string{"student_name": "Ravi", "admission_no": "A002", "caste_certificate": "uploads/x.pdf"}

			require.NoError(t, s.Append(r1))
			require.NoError(t, s.Append(r2))

			header, rows, err := s.Load()
			require.NoError(t, err)
			require.Len(t, rows, 2)

			// header of R1 (sorted, it started the table) plus R2's new column
			require.Equal(t, []string{"admission_no", "student_name", "caste_certificate"}, header)

			require.Equal(t, "Asha", rows[0]["student_name"])
			require.Equal(t, "", rows[0]["caste_certificate"])
			require.Equal(t, "Ravi", rows[1]["student_name"])
			require.Equal(t, "uploads/x.pdf", rows[1]["caste_certificate"])
		})
	}
}

func TestAppendKeepsExistingRowsIntact(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "submitted.csv"))
	require.NoError(t, s.Append(map[string]string{"admission_no": "A001", "dob": "2005-04-01"}))

	before, rows, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.Append(map[string]string{"admission_no": "A002", "dob": "2006-01-15"}))

	after, rows2, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, rows[0], rows2[0])
	require.Equal(t, "A002", rows2[1]["admission_no"])
}

func TestLoadPadsShortRows(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "t.xlsx"))
	require.NoError(t, s.Append(map[string]string{"a": "1", "b": ""}))

	header, rows, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, header)
	require.Equal(t, "", rows[0]["b"])
}
