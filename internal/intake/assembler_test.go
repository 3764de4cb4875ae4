package intake

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func textUpload(name, content string) *Upload {
	return &Upload{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func brokenUpload(name string) *Upload {
	return &Upload{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return nil, errors.New("disk on fire")
		},
	}
}

func TestAssembleMergesFormAndFiles(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(dir)

	record, staged, err := a.Assemble(
		map[string]string{"name": "Asha"},
		map[string]*Upload{"photo": textUpload("x.png", "imgdata")},
	)
	require.NoError(t, err)
	require.Len(t, staged, 1)

	require.Equal(t, "Asha", record["name"])
	require.Equal(t, staged[0], record["photo"])
	require.Equal(t, dir, filepath.Dir(record["photo"]))
	require.True(t, strings.HasSuffix(record["photo"], "_x.png"))

	data, err := os.ReadFile(record["photo"])
	require.NoError(t, err)
	require.Equal(t, "imgdata", string(data))
}

func TestAssembleAbsentFileMarker(t *testing.T) {
	a := NewAssembler(t.TempDir())
	record, staged, err := a.Assemble(
		map[string]string{"name": "Asha"},
		map[string]*Upload{"photo": nil},
	)
	require.NoError(t, err)
	require.Empty(t, staged)
	require.Equal(t, map[string]string{"name": "Asha", "photo": NoFile}, record)
}

func TestAssembleFileFieldWinsCollision(t *testing.T) {
	a := NewAssembler(t.TempDir())
	record, _, err := a.Assemble(
		map[string]string{"photo": "typed-by-hand"},
		map[string]*Upload{"photo": textUpload("p.png", "bytes")},
	)
	require.NoError(t, err)
	require.NotEqual(t, "typed-by-hand", record["photo"])
	require.FileExists(t, record["photo"])
}

func TestAssembleStagingNamesAvoidCollisions(t *testing.T) {
	a := NewAssembler(t.TempDir())
	r1, _, err := a.Assemble(nil, map[string]*Upload{"doc": textUpload("same.pdf", "one")})
	require.NoError(t, err)
	r2, _, err := a.Assemble(nil, map[string]*Upload{"doc": textUpload("same.pdf", "two")})
	require.NoError(t, err)
	require.NotEqual(t, r1["doc"], r2["doc"])
}

func TestAssembleFailureNamesFieldAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(dir)

	_, _, err := a.Assemble(
		map[string]string{"name": "Asha"},
		map[string]*Upload{
			"good": textUpload("ok.pdf", "fine"),
			"bad":  brokenUpload("nope.pdf"),
		},
	)
	require.Error(t, err)
	var uw *UploadWriteError
	require.ErrorAs(t, err, &uw)
	require.Equal(t, "bad", uw.Field)

	// nothing staged for this call survives the failure
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSanitizeFilenameStripsTraversal(t *testing.T) {
	a := NewAssembler(t.TempDir())
	record, _, err := a.Assemble(nil, map[string]*Upload{
		"doc": textUpload("../../etc/passwd", "boo"),
	})
	require.NoError(t, err)
	require.Equal(t, a.dir, filepath.Dir(record["doc"]))
	require.NotContains(t, filepath.Base(record["doc"]), "/")
}
