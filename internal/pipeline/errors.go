package pipeline

import (
	"errors"
	"fmt"
)

// ErrArtifactNotFound marks a referenced upstream artifact (a clean-audio
// file, a source document) that does not exist.
var ErrArtifactNotFound = errors.New("artifact not found")

// StepError wraps the error of the step that aborted a pipeline run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// MissingInputError is raised before any external call when a required
// input field is absent or empty.
type MissingInputError struct {
	Field string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input field %q", e.Field)
}
