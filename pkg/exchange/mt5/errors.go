package mt5

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected      = errors.New("client is not connected")
	ErrConnectInProgress = errors.New("connect already in progress")
	ErrConnectAborted    = errors.New("connect aborted by disconnect")
	ErrMissingOrderId    = errors.New("order id is missing")
	ErrEmptyResponse     = errors.New("empty response")
	ErrUnexpectedPayload = errors.New("unexpected payload shape")
)

// ConnectionError aborts a connect attempt.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

type SubscriptionError struct {
	Kind   string
	Symbol string
	Err    error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("unable to subscribe %s for %s: %v", e.Kind, e.Symbol, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// DataRequestError is returned when a whole historical request fails, never per chunk.
type DataRequestError struct {
	Method Method
	Symbol string
	Err    error
}

func (e *DataRequestError) Error() string {
	return fmt.Sprintf("data request %s for %s failed: %v", e.Method, e.Symbol, e.Err)
}

func (e *DataRequestError) Unwrap() error { return e.Err }

type ParsingError struct {
	Err error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("unable to parse response: %v", e.Err)
}

func (e *ParsingError) Unwrap() error { return e.Err }

type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

type NormalizationError struct {
	Symbol string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("unable to normalize instrument: %v", e.Err)
	}
	return fmt.Sprintf("unable to normalize instrument %s: %v", e.Symbol, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// MappingError reports a broker code with no host counterpart.
type MappingError struct {
	Kind  string
	Value string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("unmapped %s code: %s", e.Kind, e.Value)
}

// RemoteError carries the message of an error envelope.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Message
}

// RecordError wraps a broker record that cannot be mapped into a report.
type RecordError struct {
	Record string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("invalid %s record: %v", e.Record, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
