package intake

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/scholarseva/intake/internal/tabular"
	"github.com/scholarseva/intake/internal/verifications"
	"github.com/scholarseva/intake/pkg/logger"
	"github.com/scholarseva/intake/pkg/metrics"
)

// Status is the plain outcome reported to the web layer.
type Status string

const (
	StatusSubmittedOK  Status = "submitted_ok"
	StatusNotifyFailed Status = "submitted_notify_failed"
	StatusRejected     Status = "rejected"
	StatusError        Status = "error"
)

// Outcome is the terminal result of one submission. Stage names the step
// that failed when Status is error.
type Outcome struct {
	Status Status
	Stage  string
	Reason string
}

// Notifier delivers the completed submission to the fixed recipient.
// Implementations must return an error instead of panicking; the pipeline
// treats every notify error as non-fatal.
type Notifier interface {
	Notify(subject, body string, attachments []string) error
}

// Archiver copies a staged artifact to off-host storage and returns an
// access URL for the archived copy.
type Archiver interface {
	ArchiveFile(ctx context.Context, path string) (string, error)
}

// Fields that must be present for a submission to enter assembly.
var requiredFields = []string{"admission_no", "student_name"}

// Pipeline orchestrates one submission:
// Received -> Assembled -> Persisted -> Notified -> CleanedUp -> Complete.
// Notification failure degrades the result but never fails the submission;
// the record is persisted either way.
type Pipeline struct {
	assembler *Assembler
	store     *tabular.Store
	notifier  Notifier
	repo      verifications.Repository
	archive   Archiver
	keep      bool
}

func NewPipeline(assembler *Assembler, store *tabular.Store, notifier Notifier) *Pipeline {
	return &Pipeline{assembler: assembler, store: store, notifier: notifier}
}

// WithRepository adds the optional document-store sink.
func (p *Pipeline) WithRepository(r verifications.Repository) *Pipeline {
	p.repo = r
	return p
}

// WithArchive adds the optional artifact archive.
func (p *Pipeline) WithArchive(a Archiver) *Pipeline {
	p.archive = a
	return p
}

// KeepUploads retains staged files after the request instead of deleting them.
func (p *Pipeline) KeepUploads(keep bool) *Pipeline {
	p.keep = keep
	return p
}

// Submit runs the full pipeline for one submission and always returns a
// terminal Outcome; it never panics into the handler.
func (p *Pipeline) Submit(ctx context.Context, formFields map[string]string, files map[string]*Upload) Outcome {
	// Received: reject before any side effects when required fields are absent
	for _, f := range requiredFields {
		if strings.TrimSpace(formFields[f]) == "" {
			return Outcome{Status: StatusRejected, Reason: "missing required field: " + f}
		}
	}

	// Assembled
	record, staged, err := p.assembler.Assemble(formFields, files)
	if err != nil {
		return Outcome{Status: StatusError, Stage: "assemble", Reason: err.Error()}
	}

	// Persisted: the tabular store is the system of record and its failure
	// aborts the submission
	if err := p.store.Append(record); err != nil {
		p.cleanup(staged)
		return Outcome{Status: StatusError, Stage: "persist", Reason: err.Error()}
	}

	// secondary sinks are best-effort once the row is appended
	if p.repo != nil {
		if id, err := p.repo.Save(ctx, record); err != nil {
			logger.Warnf("document store save failed for %s: %v", formFields["admission_no"], err)
		} else {
			logger.Debugf("verification stored as %s", id)
		}
	}
	if p.archive != nil {
		for _, path := range staged {
			link, err := p.archive.ArchiveFile(ctx, path)
			if err != nil {
				logger.Warnf("artifact archive failed for %s: %v", path, err)
				continue
			}
			logger.Debugf("artifact archived: %s -> %s", path, link)
		}
	}

	// Notified: one attempt, failure degrades the outcome
	notifyErr := p.notifier.Notify(subjectFor(record), bodyFor(record), staged)

	// CleanedUp runs regardless of the notify result
	p.cleanup(staged)

	if notifyErr != nil {
		logger.Warnf("notification failed for %s: %v", formFields["admission_no"], notifyErr)
		metrics.NotifyFailures.Inc()
		return Outcome{Status: StatusNotifyFailed, Reason: notifyErr.Error()}
	}
	return Outcome{Status: StatusSubmittedOK}
}

func (p *Pipeline) cleanup(staged []string) {
	if p.keep {
		return
	}
	for _, path := range staged {
		if err := os.Remove(path); err != nil {
			logger.Warnf("cleanup of %s failed: %v", path, err)
		}
	}
}

func subjectFor(record map[string]string) string {
	return fmt.Sprintf("Student verification submission: %s", record["admission_no"])
}

// bodyFor renders the record as sorted "key: value" lines.
func bodyFor(record map[string]string) string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("A student verification form was submitted.\n\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, record[k])
	}
	return b.String()
}
