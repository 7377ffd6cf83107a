package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shashiranjanraj/catalogsync/app/repositories"
)

// FetchKind classifies why the remote catalog could not be obtained.
type FetchKind string

const (
	FetchNetwork    FetchKind = "network"
	FetchTimeout    FetchKind = "timeout"
	FetchHTTPStatus FetchKind = "http_status"
	FetchDecode     FetchKind = "decode"
)

// ReasonMissingID is the ValidationError reason for a record without an id.
const ReasonMissingID = "missing_id"

var (
	// ErrFetch matches every *FetchError.
	ErrFetch = errors.New("catalog fetch failed")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("catalog validation failed")
	// ErrSyncInProgress is returned when a sync is already running.
	ErrSyncInProgress = errors.New("catalog sync already in progress")
)

// FetchError is returned when the remote catalog cannot be fetched or
// decoded. Nothing has been written when it is returned.
type FetchError struct {
	Kind       FetchKind
	URL        string
	StatusCode int // set for FetchHTTPStatus
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchHTTPStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ValidationError is returned when a fetched record breaks a structural
// rule. The whole batch is rejected.
type ValidationError struct {
	Reason string
	Index  int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate: record %d: %s", e.Index, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ErrorKind maps a sync error to a stable label used in metrics, logs, HTTP
// responses and CLI output.
func ErrorKind(err error) string {
	var fe *FetchError
	var ve *ValidationError
	var se *repositories.StorageError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fe):
		return "fetch_error:" + string(fe.Kind)
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &se):
		return "storage_" + string(se.Kind)
	case errors.Is(err, ErrSyncInProgress):
		return "busy"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "unknown"
}
