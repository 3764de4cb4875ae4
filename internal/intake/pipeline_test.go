package intake

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/scholarseva/intake/internal/tabular"
	"github.com/scholarseva/intake/internal/verifications"
	"github.com/scholarseva/intake/pkg/metrics"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	err         error
	calls       int
	subject     string
	attachments []string
}

func (f *fakeNotifier) Notify(subject, body string, attachments []string) error {
	f.calls++
	f.subject = subject
	f.attachments = attachments
	return f.err
}

type fakeArchiver struct {
	paths []string
	err   error
}

func (f *fakeArchiver) ArchiveFile(_ context.Context, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.paths = append(f.paths, path)
	return "https://archive.local/" + filepath.Base(path), nil
}

func newTestPipeline(t *testing.T, n Notifier) (*Pipeline, *tabular.Store, *verifications.MemoryRepo) {
	t.Helper()
	uploads := t.TempDir()
	store := tabular.NewStore(filepath.Join(t.TempDir(), "submitted.csv"))
	repo := verifications.NewMemoryRepo()
	p := NewPipeline(NewAssembler(uploads), store, n).WithRepository(repo)
	return p, store, repo
}

func TestSubmitEndToEnd(t *testing.T) {
	n := &fakeNotifier{}
	p, store, repo := newTestPipeline(t, n)

	out := p.Submit(context.Background(),
		map[string]string{"admission_no": "A001", "student_name": "Asha", "dob": "2005-04-01"},
		map[string]*Upload{"caste_certificate": textUpload("caste.pdf", "pdfdata")},
	)
	require.Equal(t, StatusSubmittedOK, out.Status)

	_, rows, err := store.Load()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "A001", rows[0]["admission_no"])
	require.Equal(t, "Asha", rows[0]["student_name"])
	require.NotEmpty(t, rows[0]["caste_certificate"])

	require.Len(t, repo.All(), 1)
	require.Equal(t, 1, n.calls)
	require.Contains(t, n.subject, "A001")
	require.Len(t, n.attachments, 1)

	// staged artifact was cleaned up after notification
	require.NoFileExists(t, n.attachments[0])
}

func TestSubmitNotifyFailureDegrades(t *testing.T) {
	n := &fakeNotifier{err: errors.New("relay unreachable")}
	p, store, _ := newTestPipeline(t, n)

	before := testutil.ToFloat64(metrics.NotifyFailures)
	out := p.Submit(context.Background(),
		map[string]string{"admission_no": "A001", "student_name": "Asha"},
		nil,
	)
	require.Equal(t, StatusNotifyFailed, out.Status)
	require.Contains(t, out.Reason, "relay unreachable")
	require.Equal(t, before+1, testutil.ToFloat64(metrics.NotifyFailures))

	// record persisted despite the notification failure
	_, rows, err := store.Load()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestSubmitRejectedBeforeSideEffects(t *testing.T) {
	n := &fakeNotifier{}
	p, store, repo := newTestPipeline(t, n)

	out := p.Submit(context.Background(),
		map[string]string{"student_name": "Asha"}, // admission_no missing
		nil,
	)
	require.Equal(t, StatusRejected, out.Status)
	require.Contains(t, out.Reason, "admission_no")

	_, _, err := store.Load()
	require.ErrorIs(t, err, tabular.ErrUnavailable)
	require.Empty(t, repo.All())
	require.Zero(t, n.calls)
}

func TestSubmitAssembleFailure(t *testing.T) {
	n := &fakeNotifier{}
	p, store, _ := newTestPipeline(t, n)

	out := p.Submit(context.Background(),
		map[string]string{"admission_no": "A001", "student_name": "Asha"},
		map[string]*Upload{"caste_certificate": brokenUpload("x.pdf")},
	)
	require.Equal(t, StatusError, out.Status)
	require.Equal(t, "assemble", out.Stage)
	require.Contains(t, out.Reason, "caste_certificate")

	_, _, err := store.Load()
	require.ErrorIs(t, err, tabular.ErrUnavailable)
	require.Zero(t, n.calls)
}

func TestSubmitPersistFailure(t *testing.T) {
	n := &fakeNotifier{}
	uploads := t.TempDir()
	// point the store into a directory that does not exist
	store := tabular.NewStore(filepath.Join(t.TempDir(), "missing", "submitted.csv"))
	p := NewPipeline(NewAssembler(uploads), store, n)

	out := p.Submit(context.Background(),
		map[string]string{"admission_no": "A001", "student_name": "Asha"},
		map[string]*Upload{"domicile_certificate": textUpload("d.pdf", "data")},
	)
	require.Equal(t, StatusError, out.Status)
	require.Equal(t, "persist", out.Stage)
	require.Zero(t, n.calls)
}

func TestSubmitArchivesStagedArtifacts(t *testing.T) {
	n := &fakeNotifier{}
	a := &fakeArchiver{}
	p, store, _ := newTestPipeline(t, n)
	p.WithArchive(a)

	out := p.Submit(context.Background(),
		map[string]string{"admission_no": "A001", "student_name": "Asha"},
		map[string]*Upload{"caste_certificate": textUpload("caste.pdf", "pdfdata")},
	)
	require.Equal(t, StatusSubmittedOK, out.Status)
	require.Len(t, a.paths, 1)
	require.Contains(t, a.paths[0], "caste.pdf")

	_, rows, err := store.Load()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestSubmitArchiveFailureDoesNotFailSubmission(t *testing.T) {
	n := &fakeNotifier{}
	a := &fakeArchiver{err: errors.New("bucket gone")}
	p, _, _ := newTestPipeline(t, n)
	p.WithArchive(a)

	out := p.Submit(context.Background(),
		map[string]string{"admission_no": "A001", "student_name": "Asha"},
		map[string]*Upload{"bank_passbook": textUpload("p.pdf", "data")},
	)
	require.Equal(t, StatusSubmittedOK, out.Status)
	require.Equal(t, 1, n.calls)
}

func TestSubmitKeepUploadsRetainsArtifacts(t *testing.T) {
	n := &fakeNotifier{}
	p, _, _ := newTestPipeline(t, n)
	p.KeepUploads(true)

	out := p.Submit(context.Background(),
		map[string]string{"admission_no": "A001", "student_name": "Asha"},
		map[string]*Upload{"bank_passbook": textUpload("p.pdf", "data")},
	)
	require.Equal(t, StatusSubmittedOK, out.Status)
	require.Len(t, n.attachments, 1)
	require.FileExists(t, n.attachments[0])
}
