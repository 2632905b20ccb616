package itunes

import "fmt"

// RemoteSearchError is returned for a non-2xx response or a transport failure.
// Status is 0 when no response was received.
type RemoteSearchError struct {
	Status int
	Err    error
}

func (e *RemoteSearchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("itunes: status %d: %v", e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("itunes: status %d", e.Status)
	default:
		return fmt.Sprintf("itunes: %v", e.Err)
	}
}

func (e *RemoteSearchError) Unwrap() error {
	return e.Err
}
