package client

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrUnknownMethod is returned for calls to a method the class does not declare.
var ErrUnknownMethod = errors.New("client: unknown method")

// RequestError reports a call that failed outside the protocol: the request
// could not be sent, the response could not be read, or the server answered
// with a status or body the protocol does not define.
type RequestError struct {
	Cause   error
	Method  string
	Options CallOptions
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("call %s: %v", e.Method, e.Cause)
}

func (e *RequestError) Unwrap() error { return e.Cause }

// StatusError is the Cause of a RequestError for responses outside the
// protocol, for example a proxy answering 502 with an HTML page.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return strconv.Itoa(e.StatusCode) + " - " + e.Status
}

// TimeoutError reports a call abandoned because its deadline passed or its
// context was canceled before a response arrived.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("call %s: timed out after %v", e.Method, e.Timeout)
	}
	return fmt.Sprintf("call %s: canceled", e.Method)
}
