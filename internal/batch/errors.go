package batch

import "errors"

var (
	// ErrBusy is returned by Start while a previous run has not finished.
	ErrBusy = errors.New("a batch run is already in progress")

	// ErrNoInputs is returned by Start for an empty input list.
	ErrNoInputs = errors.New("no inputs to process")

	// ErrUnsupportedInput fails a run whose inputs include a path that is
	// neither an image nor an archive.
	ErrUnsupportedInput = errors.New("unsupported input")
)
