package delivery

import (
	"errors"
	"fmt"

	"github.com/skilltreehq/mentor-platform/internal/graph"
)

// Pipeline stages for error attribution.
const (
	StageValidate      = "validate"
	StageEnsureFolder  = "ensure_folder"
	StageUpload        = "upload"
	StageResolveLink   = "resolve_link"
	StageComposeNotify = "compose_notify"
)

// Stable machine-readable failure codes.
const (
	CodeFileTooLarge  = "file_too_large"
	CodeInvalidSize   = "invalid_size"
	CodeQuotaExceeded = "quota_exceeded"
	CodeUploadFailed  = "upload_failed"
)

// ErrFileTooLarge is returned before any network call when the declared size
// exceeds the configured limit.
var ErrFileTooLarge = errors.New("file exceeds the configured size limit")

// UploadError wraps a failure with the pipeline stage it occurred in and a
// stable code callers can branch on without parsing messages.
type UploadError struct {
	Stage string
	Code  string
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("delivery failed at stage %s (%s): %v", e.Stage, e.Code, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func stageErr(stage, code string, err error) error {
	return &UploadError{Stage: stage, Code: code, Err: err}
}

// uploadCode classifies an upload failure into a stable code.
func uploadCode(err error) string {
	if graph.IsQuotaExceeded(err) {
		return CodeQuotaExceeded
	}
	return CodeUploadFailed
}
