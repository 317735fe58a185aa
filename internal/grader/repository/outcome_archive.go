package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"examgrader/internal/common/storage"
	"examgrader/internal/grader/sandbox/result"
	appErr "examgrader/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

const archiveContentType = "application/zstd"

// OutcomeArchive keeps the full per-case outcomes of a graded submission in
// object storage as zstd-compressed JSON.
type OutcomeArchive struct {
	storage storage.ObjectStorage
	bucket  string
}

func NewOutcomeArchive(store storage.ObjectStorage, bucket string) *OutcomeArchive {
	return &OutcomeArchive{storage: store, bucket: bucket}
}

// ArchiveKey returns the object key of a submission's outcomes.
func ArchiveKey(submissionID string) string {
	return "grades/" + submissionID + ".json.zst"
}

// Put uploads grade and returns its object key.
func (a *OutcomeArchive) Put(ctx context.Context, submissionID string, grade result.GradeResult) (string, error) {
	if submissionID == "" {
		return "", appErr.ValidationError("submission_id", "required")
	}
	raw, err := json.Marshal(grade)
	if err != nil {
		return "", fmt.Errorf("marshal grade failed: %w", err)
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return "", fmt.Errorf("create zstd encoder failed: %w", err)
	}
	defer encoder.Close()
	compressed := encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))

	key := ArchiveKey(submissionID)
	if err := a.storage.PutObject(ctx, a.bucket, key, bytes.NewReader(compressed), int64(len(compressed)), archiveContentType); err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "upload outcomes failed")
	}
	return key, nil
}

// Get downloads and decodes the outcomes stored for submissionID.
func (a *OutcomeArchive) Get(ctx context.Context, submissionID string) (result.GradeResult, error) {
	reader, err := a.storage.GetObject(ctx, a.bucket, ArchiveKey(submissionID))
	if err != nil {
		return result.GradeResult{}, appErr.Wrapf(err, appErr.StorageError, "download outcomes failed")
	}
	defer reader.Close()

	decoder, err := zstd.NewReader(reader)
	if err != nil {
		return result.GradeResult{}, appErr.Wrapf(err, appErr.StorageError, "open zstd stream failed")
	}
	defer decoder.Close()
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return result.GradeResult{}, appErr.Wrapf(err, appErr.StorageError, "decompress outcomes failed")
	}
	var grade result.GradeResult
	if err := json.Unmarshal(raw, &grade); err != nil {
		return result.GradeResult{}, appErr.Wrapf(err, appErr.StorageError, "decode outcomes failed")
	}
	return grade, nil
}
