package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNoQuestions is returned when the backend answers with an empty list.
	ErrNoQuestions = errors.New("no questions received from server")
	// ErrEmptyTranscript is returned by Score for blank transcripts.
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// StatusError reports a non-2xx HTTP response without a usable error body.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Code)
}

// RemoteError carries the message of a {status:"error"} response.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "backend reported an error"
	}
	return e.Message
}

// InvalidQuestionsError reports questions missing an id or text.
type InvalidQuestionsError struct {
	Valid int
	Total int
}

func (e *InvalidQuestionsError) Error() string {
	return fmt.Sprintf("only %d/%d questions are valid", e.Valid, e.Total)
}

// MalformedResponseError reports a body that is not the expected JSON shape.
type MalformedResponseError struct {
	Endpoint string
	Problems []string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response from %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("malformed response from %s: %v", e.Endpoint, e.Problems)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ConnectError wraps transport failures reaching the backend.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("could not connect to the scoring backend at %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
