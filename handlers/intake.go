package handlers

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/scholarseva/intake/internal/intake"
	"github.com/scholarseva/intake/internal/lookup"
	"github.com/scholarseva/intake/internal/tabular"
	"github.com/scholarseva/intake/pkg/metrics"
)

// IntakeHandler wires the lookup, submission and download endpoints to the
// pipeline. The reference table is loaded fresh on every lookup — no
// process-global cached table.
type IntakeHandler struct {
	refStore      *tabular.Store
	submitted     *tabular.Store
	pipeline      *intake.Pipeline
	downloadToken string
}

func NewIntakeHandler(refStore, submitted *tabular.Store, p *intake.Pipeline, downloadToken string) *IntakeHandler {
	return &IntakeHandler{refStore: refStore, submitted: submitted, pipeline: p, downloadToken: downloadToken}
}

func (h *IntakeHandler) Register(r *gin.Engine) {
	r.GET("/api/lookup", h.Lookup)
	r.POST("/submit", h.Submit)
	r.GET("/download/:token", h.Download)
}

// Lookup resolves admission_no + dob to at most one reference record.
func (h *IntakeHandler) Lookup(c *gin.Context) {
	admissionNo := c.Query("admission_no")
	dob := c.Query("dob")
	if admissionNo == "" || dob == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "rejected", "reason": "admission_no and dob are required"})
		return
	}

	tbl, err := lookup.FromStore(h.refStore)
	if err != nil {
		var se *lookup.SchemaError
		if errors.As(err, &se) {
			metrics.LookupsTotal.WithLabelValues("bad_schema").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"status": "bad_schema", "error": se.Error()})
			return
		}
		metrics.LookupsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}

	row, ok := tbl.Find(admissionNo, dob)
	if !ok {
		metrics.LookupsTotal.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found"})
		return
	}
	metrics.LookupsTotal.WithLabelValues("found").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "found", "record": row})
}

// Submit accepts the multipart verification form and runs the full pipeline.
func (h *IntakeHandler) Submit(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "rejected", "reason": "multipart form expected: " + err.Error()})
		return
	}

	formFields := make(map[string]string, len(form.Value))
	for k, vs := range form.Value {
		if len(vs) > 0 {
			formFields[k] = vs[0]
		}
	}

	// every file part present in the form is staged; an empty filename
	// means the applicant left that document slot blank
	files := make(map[string]*intake.Upload, len(form.File))
	for k, fhs := range form.File {
		if len(fhs) == 0 || fhs[0].Filename == "" {
			files[k] = nil
			continue
		}
		fh := fhs[0]
		files[k] = &intake.Upload{
			Filename: fh.Filename,
			Open: func() (io.ReadCloser, error) {
				f, err := fh.Open()
				if err != nil {
					return nil, err
				}
				return f, nil
			},
		}
	}

	out := h.pipeline.Submit(c.Request.Context(), formFields, files)
	metrics.SubmissionsTotal.WithLabelValues(string(out.Status)).Inc()

	switch out.Status {
	case intake.StatusSubmittedOK:
		c.JSON(http.StatusOK, gin.H{"status": string(out.Status)})
	case intake.StatusNotifyFailed:
		c.JSON(http.StatusOK, gin.H{"status": string(out.Status), "reason": out.Reason})
	case intake.StatusRejected:
		c.JSON(http.StatusBadRequest, gin.H{"status": string(out.Status), "reason": out.Reason})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"status": string(out.Status), "stage": out.Stage, "reason": out.Reason})
	}
}

// Download serves the full persisted table behind the static token gate.
// This is a deliberately weak single-secret scheme inherited from the form's
// deployment model; anyone holding the URL holds the data.
func (h *IntakeHandler) Download(c *gin.Context) {
	token := c.Param("token")
	if h.downloadToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.downloadToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "unauthorized"})
		return
	}

	path := h.submitted.Path()
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found", "reason": "no submissions recorded yet"})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
