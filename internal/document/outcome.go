package document

import "net/http"

// Outcome is the result of a write or delete.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	// OutcomeGone: the caller presented the token being superseded.
	OutcomeGone
	// OutcomeConflict: the write raced another writer and was rolled back.
	OutcomeConflict
)

// Status maps the outcome onto an HTTP status code.
func (o Outcome) Status() int {
	switch o {
	case OutcomeCreated:
		return http.StatusCreated
	case OutcomeUpdated:
		return http.StatusOK
	case OutcomeGone:
		return http.StatusGone
	case OutcomeConflict:
		return http.StatusPreconditionFailed
	}
	return http.StatusNotFound
}

// Committed reports whether the mutation is in the store after the call.
func (o Outcome) Committed() bool {
	return o == OutcomeCreated || o == OutcomeUpdated || o == OutcomeGone
}

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeGone:
		return "gone"
	case OutcomeConflict:
		return "conflict"
	}
	return "not_found"
}
