package intake

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// NoFile is the value recorded for a file field the applicant left empty.
// It keeps the cell blank in the persisted table.
const NoFile = ""

// Upload is one incoming file: the client-supplied filename and a way to
// open its content. The handler layer adapts multipart file headers into
// this shape so the assembler stays independent of the web framework.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// UploadWriteError reports that a file field could not be staged to disk.
// It aborts the submission before anything is persisted.
type UploadWriteError struct {
	Field string
	Err   error
}

func (e *UploadWriteError) Error() string {
	return fmt.Sprintf("upload field %q could not be staged: %v", e.Field, e.Err)
}

func (e *UploadWriteError) Unwrap() error { return e.Err }

// Assembler merges textual form fields with staged upload files into one
// flat submission record.
type Assembler struct {
	dir string
}

func NewAssembler(dir string) *Assembler {
	return &Assembler{dir: dir}
}

// Assemble stages every provided upload under a collision-safe name and
// returns the flat record: all form fields unchanged, plus one entry per
// file field holding the staged path (or NoFile when nothing was supplied).
// File fields overwrite form fields of the same name — files merge last.
// The second return value lists the staged paths for later cleanup.
//
// Any staging failure removes files already staged for this call and
// returns an *UploadWriteError naming the offending field.
func (a *Assembler) Assemble(formFields map[string]string, files map[string]*Upload) (map[string]string, []string, error) {
	record := make(map[string]string, len(formFields)+len(files))
	for k, v := range formFields {
		record[k] = v
	}

	var staged []string
	for field, up := range files {
		if up == nil {
			record[field] = NoFile
			continue
		}
		path, err := a.stage(up)
		if err != nil {
			for _, p := range staged {
				os.Remove(p)
			}
			return nil, nil, &UploadWriteError{Field: field, Err: err}
		}
		staged = append(staged, path)
		record[field] = path
	}
	return record, staged, nil
}

func (a *Assembler) stage(up *Upload) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.New().String() + "_" + sanitizeFilename(up.Filename)
	path := filepath.Join(a.dir, name)

	src, err := up.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// sanitizeFilename keeps only the base name and replaces characters outside
// [A-Za-z0-9._-] so a client-chosen filename cannot escape the staging dir.
func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || out == "." || out == ".." {
		out = "upload"
	}
	return out
}
