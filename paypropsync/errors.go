package paypropsync

import (
	"fmt"

	"bitbucket.org/oakcrm/lettings_backend/models"
)

// UnresolvedReferenceError marks a row that references an external id
// with no local entity. Recorded per row; never aborts a run.
type UnresolvedReferenceError struct {
	Kind       models.EntityKind
	ExternalId string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved %s reference %q", e.Kind, e.ExternalId)
}

// BatchImportError wraps one collected settlement import failure.
type BatchImportError struct {
	Message string
}

func (e *BatchImportError) Error() string {
	return e.Message
}
