package verifications

import "context"

// Repository persists completed verification records to the document store.
// The tabular file remains the system of record; this sink is best-effort
// and failures never roll back a submission.
type Repository interface {
	Save(ctx context.Context, record map[string]string) (string, error)
}
