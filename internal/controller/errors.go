package controller

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFiles is returned when an upload is triggered with an empty selection.
	ErrNoFiles = errors.New("no files selected")

	// ErrBusy is returned when an upload is triggered while another attempt
	// is still uploading or polling.
	ErrBusy = errors.New("an upload is already in progress")

	// ErrPollLimit is wrapped by PollError when polling gives up after the
	// configured number of polls or duration.
	ErrPollLimit = errors.New("poll limit reached")
)

// UploadError reports a failed upload request. No polling was started.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// PollError reports a failure that ended a polling session.
type PollError struct {
	UploadID string
	Attempt  int
	Err      error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("polling upload %s failed on attempt %d: %v", e.UploadID, e.Attempt, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}
