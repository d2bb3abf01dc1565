package service

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence indicates the dataset could not be written.
	ErrPersistence = errors.New("dataset persistence failed")

	// ErrRunInProgress is returned when a run is requested while another is active.
	ErrRunInProgress = errors.New("extraction run already in progress")
)

// Pipeline stages reported by StageError.
const (
	StageRetrieve = "retrieve"
	StageExtract  = "extract"
	StageDecode   = "decode"
	StagePersist  = "persist"
	StageReload   = "reload"
)

// StageError is a fatal run failure tagged with the stage and the file or URL
// it concerned.
type StageError struct {
	Stage string
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s stage (%s): %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
