package store

import "fmt"

// RecordError points at the record of a batch that failed.
type RecordError struct {
	Kind  string
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s #%d: %v", e.Kind, e.Index+1, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
