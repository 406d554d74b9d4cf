// Package apperr holds the sentinel errors shared across tracker layers.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrArchived = errors.New("entry is archived")

	// ErrInvalidScore rejects values outside {0, 0.5, 1.0} before any write.
	ErrInvalidScore = errors.New("invalid score")
	// ErrInvalidConfig rejects metric config JSON that fails validation.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrReadOnlyDate is returned when a grid tap targets a day other than today.
	ErrReadOnlyDate = errors.New("only today's entry can be scored")

	ErrMissingExportTarget = errors.New("no export url configured")
	ErrExportFailed        = errors.New("export failed")
	ErrExportInProgress    = errors.New("export already in progress")
	// ErrPartialCommit means the remote accepted the export but the local
	// archive-and-reseed did not complete.
	ErrPartialCommit = errors.New("export sent but local archive failed")
)
