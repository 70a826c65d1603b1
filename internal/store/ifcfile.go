// Package store is the shared persistence layer: raw SQL against Postgres
// for IfcFile and Building records, in the teacher's style of embedding SQL
// directly in small service methods rather than behind a generic ORM.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ifcatlas/api/internal/apperr"
)

// UploadStatus is the IfcFile upload lifecycle state.
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadCompleted UploadStatus = "completed"
	UploadDeleted   UploadStatus = "deleted"
)

// ProcessingStatus is the IfcFile extraction lifecycle state.
type ProcessingStatus string

const (
	ProcessingNotStarted ProcessingStatus = "not_started"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// IfcFile is one upload attempt.
type IfcFile struct {
	ID                string
	FileName          string
	FileSize          int64
	S3Key             string
	UploadStatus      UploadStatus
	ProcessingStatus  ProcessingStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
	UploadedAt        *time.Time
}

// IfcFileStore persists IfcFile records.
type IfcFileStore struct {
	DB *sql.DB
}

// NewIfcFileStore creates a new IfcFileStore.
func NewIfcFileStore(db *sql.DB) *IfcFileStore {
	return &IfcFileStore{DB: db}
}

// SweepAndInsert atomically marks every non-deleted IfcFile as deleted and
// inserts the new pending row in the same transaction, so the sweep can
// never race ahead of and delete the freshly-inserted row (spec §5
// ordering guarantee). This is the "single-file replacement policy":
// development-mode behaviour, unconditional, advisory under concurrency.
//
// swept is the list of s3_keys that were marked deleted, so the caller can
// best-effort delete them from object storage outside the transaction.
func (s *IfcFileStore) SweepAndInsert(ctx context.Context, f *IfcFile) (swept []string, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, &apperr.DatabaseError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE ifc_files SET upload_status = 'deleted', updated_at = $1
		WHERE upload_status != 'deleted'
		RETURNING s3_key`, time.Now().UTC())
	if err != nil {
		return nil, &apperr.DatabaseError{Op: "sweep", Err: err}
	}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, &apperr.DatabaseError{Op: "scan swept key", Err: err}
		}
		swept = append(swept, key)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.DatabaseError{Op: "sweep rows", Err: err}
	}
	rows.Close()

	now := time.Now().UTC()
	f.ID = uuid.New().String()
	f.UploadStatus = UploadPending
	f.ProcessingStatus = ProcessingNotStarted
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ifc_files (id, file_name, file_size, s3_key, upload_status, processing_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.FileName, f.FileSize, f.S3Key, f.UploadStatus, f.ProcessingStatus, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return nil, &apperr.DatabaseError{Op: "insert ifc_file", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &apperr.DatabaseError{Op: "commit", Err: err}
	}

	return swept, nil
}

// Insert creates a pending IfcFile row without sweeping prior uploads, for
// deployments that disable the single-file replacement policy.
func (s *IfcFileStore) Insert(ctx context.Context, f *IfcFile) error {
	now := time.Now().UTC()
	f.ID = uuid.New().String()
	f.UploadStatus = UploadPending
	f.ProcessingStatus = ProcessingNotStarted
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO ifc_files (id, file_name, file_size, s3_key, upload_status, processing_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.FileName, f.FileSize, f.S3Key, f.UploadStatus, f.ProcessingStatus, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return &apperr.DatabaseError{Op: "insert ifc_file", Err: err}
	}
	return nil
}

// Get looks up an IfcFile by ID.
func (s *IfcFileStore) Get(ctx context.Context, id string) (*IfcFile, error) {
	var f IfcFile
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, file_name, file_size, s3_key, upload_status, processing_status, created_at, updated_at, uploaded_at
		FROM ifc_files WHERE id = $1`, id,
	).Scan(&f.ID, &f.FileName, &f.FileSize, &f.S3Key, &f.UploadStatus, &f.ProcessingStatus, &f.CreatedAt, &f.UpdatedAt, &f.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &apperr.DatabaseError{Op: "get ifc_file", Err: err}
	}
	return &f, nil
}

// MarkCompleted transitions upload_status -> completed, stamps uploaded_at,
// and transitions processing_status -> processing, all in one statement so
// the transition is atomic relative to concurrent readers.
func (s *IfcFileStore) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.DB.ExecContext(ctx, `
		UPDATE ifc_files
		SET upload_status = 'completed', uploaded_at = $2, processing_status = 'processing', updated_at = $2
		WHERE id = $1`, id, now)
	if err != nil {
		return &apperr.DatabaseError{Op: "mark completed", Err: err}
	}
	return nil
}

// SweepAbandoned marks pending IfcFile rows older than ttl as deleted,
// implementing the "implicitly abandoned" invariant from spec.md §3. Not
// exposed as an HTTP endpoint; called opportunistically, e.g. before
// issuing a new presign.
func (s *IfcFileStore) SweepAbandoned(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	res, err := s.DB.ExecContext(ctx, `
		UPDATE ifc_files SET upload_status = 'deleted', updated_at = $2
		WHERE upload_status = 'pending' AND created_at < $1`,
		cutoff, time.Now().UTC())
	if err != nil {
		return 0, &apperr.DatabaseError{Op: "sweep abandoned", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Delete removes the IfcFile row entirely (used by the Building cascade).
func (s *IfcFileStore) Delete(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM ifc_files WHERE id = $1`, id)
	if err != nil {
		return &apperr.DatabaseError{Op: "delete ifc_file", Err: err}
	}
	return nil
}
