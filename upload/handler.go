// Package upload implements the three-step upload protocol: a client asks
// for a presigned PUT URL, streams the file directly to object storage,
// then confirms completion so the server can hand the file off to the
// background extraction worker via the task dispatcher.
package upload

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ifcatlas/api/internal/apperr"
	"github.com/ifcatlas/api/internal/broker"
	"github.com/ifcatlas/api/internal/metrics"
	"github.com/ifcatlas/api/internal/objectstore"
	"github.com/ifcatlas/api/internal/store"
)

var allowedContentTypes = map[string]bool{
	"application/x-step": true,
	"application/ifc":    true,
	"text/plain":         true,
}

var mimePattern = regexp.MustCompile(`^[\w-]+/[\w-+.]+$`)

const alnum = "abcdefghijklmnopqrstuvwxyz0123456789"

// Config configures the upload orchestrator.
type Config struct {
	MaxFileSizeMB             int64
	PresignedURLExpirySeconds int
	SingleFileReplacement     bool
}

// Handler holds the upload orchestrator's HTTP handler dependencies.
type Handler struct {
	Config    Config
	IfcFiles  *store.IfcFileStore
	Objects   *objectstore.Client
	Broker    *broker.Client
}

// NewHandler creates a new upload handler.
func NewHandler(cfg Config, ifcFiles *store.IfcFileStore, objects *objectstore.Client, brk *broker.Client) *Handler {
	return &Handler{Config: cfg, IfcFiles: ifcFiles, Objects: objects, Broker: brk}
}

// RegisterRoutes registers the upload orchestrator routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/upload/request", h.RequestUpload)
	mux.HandleFunc("POST /api/v1/upload/complete", h.CompleteUpload)
}

type requestUploadBody struct {
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType"`
}

// RequestUpload answers POST /upload/request: validates the proposed
// upload, sweeps abandoned pending uploads older than the presign TTL,
// generates an object key, issues a presigned PUT URL, and then records the
// new pending row (in the same transaction that sweeps previous uploads
// when the single-file replacement policy is on). A presign failure
// therefore leaves both the new row and the replacement sweep undone.
func (h *Handler) RequestUpload(w http.ResponseWriter, r *http.Request) {
	var body requestUploadBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apperr.Write(w, r, apperr.NewBadRequest("invalid request body"))
		return
	}

	if err := validateUploadRequest(body, h.Config.MaxFileSizeMB); err != nil {
		apperr.Write(w, r, err)
		return
	}

	ttl := time.Duration(h.Config.PresignedURLExpirySeconds) * time.Second

	if n, err := h.IfcFiles.SweepAbandoned(r.Context(), ttl); err != nil {
		log.Printf("abandoned-upload sweep failed, continuing: %v", err)
	} else if n > 0 {
		log.Printf("swept %d abandoned pending upload(s)", n)
	}

	key := generateKey(body.FileName)

	presignedURL, err := h.Objects.PresignPut(r.Context(), key, body.ContentType, ttl)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	f := &store.IfcFile{
		FileName: body.FileName,
		FileSize: body.FileSize,
		S3Key:    key,
	}

	var swept []string
	if h.Config.SingleFileReplacement {
		swept, err = h.IfcFiles.SweepAndInsert(r.Context(), f)
	} else {
		err = h.IfcFiles.Insert(r.Context(), f)
	}
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	for _, s3Key := range swept {
		if delErr := h.Objects.Delete(r.Context(), s3Key); delErr != nil {
			log.Printf("replacement sweep: best-effort object delete failed for %s: %v", s3Key, delErr)
		}
	}

	metrics.UploadsRequested.Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fileId":       f.ID,
		"presignedUrl": presignedURL,
		"s3Key":        key,
		"expiresIn":    h.Config.PresignedURLExpirySeconds,
	})
}

type completeUploadBody struct {
	FileID string `json:"fileId"`
	S3Key  string `json:"s3Key"`
}

// CompleteUpload answers POST /upload/complete: confirms the object landed
// in storage, transitions the IfcFile row, and dispatches the extraction
// task. HEAD-before-commit and commit-before-enqueue ordering is preserved.
func (h *Handler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	var body completeUploadBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apperr.Write(w, r, apperr.NewBadRequest("invalid request body"))
		return
	}

	f, err := h.IfcFiles.Get(r.Context(), body.FileID)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	if f == nil {
		metrics.UploadsFailed.WithLabelValues("not_found").Inc()
		apperr.Write(w, r, apperr.NewNotFound("file not found"))
		return
	}

	if f.S3Key != body.S3Key {
		metrics.UploadsFailed.WithLabelValues("key_mismatch").Inc()
		apperr.Write(w, r, apperr.NewBadRequest("S3 key mismatch"))
		return
	}

	exists, _, err := h.Objects.Head(r.Context(), f.S3Key)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	if !exists {
		metrics.UploadsFailed.WithLabelValues("not_in_storage").Inc()
		apperr.Write(w, r, apperr.NewBadRequest("File not found in storage"))
		return
	}

	if err := h.IfcFiles.MarkCompleted(r.Context(), f.ID); err != nil {
		apperr.Write(w, r, err)
		return
	}
	metrics.UploadsCompleted.Inc()

	taskID, err := h.Broker.DispatchIFCProcessing(r.Context(), f.ID, f.S3Key)
	if err != nil {
		metrics.TaskDispatchFailures.WithLabelValues("ifc_processing").Inc()
		apperr.Write(w, r, err)
		return
	}
	metrics.TasksDispatched.WithLabelValues("ifc_processing").Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"fileId":           f.ID,
		"fileName":         f.FileName,
		"uploadStatus":     string(store.UploadCompleted),
		"processingStatus": string(store.ProcessingInProgress),
		"taskId":           taskID,
	})
}

func validateUploadRequest(body requestUploadBody, maxFileSizeMB int64) error {
	var fields []apperr.FieldError

	if len(body.FileName) < 1 || len(body.FileName) > 255 {
		fields = append(fields, apperr.FieldError{Field: "fileName", Message: "must be 1-255 characters"})
	} else if !strings.HasSuffix(strings.ToLower(body.FileName), ".ifc") {
		fields = append(fields, apperr.FieldError{Field: "fileName", Message: "Only .ifc files are supported"})
	}

	if !allowedContentTypes[body.ContentType] {
		fields = append(fields, apperr.FieldError{Field: "contentType", Message: "unsupported content type"})
	} else if !mimePattern.MatchString(body.ContentType) {
		fields = append(fields, apperr.FieldError{Field: "contentType", Message: "malformed MIME type"})
	}

	maxBytes := maxFileSizeMB * 1024 * 1024
	if body.FileSize <= 0 || body.FileSize > maxBytes {
		fields = append(fields, apperr.FieldError{Field: "fileSize", Message: fmt.Sprintf("must be a positive integer no greater than %d MiB", maxFileSizeMB)})
	}

	if len(fields) > 0 {
		return &apperr.ValidationError{Details: fields}
	}
	return nil
}

// generateKey builds the opaque object key {unix_ms}-{rand_alnum}-{fileName}.
func generateKey(fileName string) string {
	return fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), randAlnum(8), fileName)
}

func randAlnum(n int) string {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alnum))))
		if err != nil {
			b[i] = alnum[0]
			continue
		}
		b[i] = alnum[idx.Int64()]
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
