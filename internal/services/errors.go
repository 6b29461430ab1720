package services

import "errors"

// Pipeline failure taxonomy. These are matched with errors.Is by the worker
// when converting a failure into a persisted job state.
var (
	// ErrInvalidSource means the URL failed allow-list or shape validation.
	ErrInvalidSource = errors.New("invalid video source URL")

	// ErrUnsupportedContent means the video violates duration, size or
	// live-stream constraints discovered at metadata resolution time.
	ErrUnsupportedContent = errors.New("unsupported video content")

	// ErrDownloadFailed means the download did not survive transient retries.
	ErrDownloadFailed = errors.New("video download failed")

	// ErrNoClipsProduced means every segment failed to render.
	ErrNoClipsProduced = errors.New("no clips were successfully created")

	// ErrOutOfMemory means process memory stayed above the ceiling even
	// after a forced collection pass.
	ErrOutOfMemory = errors.New("memory usage too high")
)
