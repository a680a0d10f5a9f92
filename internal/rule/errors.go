package rule

import "fmt"

// CollaboratorError wraps a failure from an injected collaborator
// (rule store, history query, firing sink) so the caller can tell which
// dependency was unavailable.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
