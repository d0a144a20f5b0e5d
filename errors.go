package mediator

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var errorJSON = []byte(`{"type":"error"}`)

// PanicError is the error routed when a subscriber panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Unwrap returns the panic value when it is an error.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

// envelope marks the messages the router publishes on behalf of a failed
// subscriber. Failures while handling an envelope are logged instead of routed.
type envelope interface {
	routedFailure()
}

// ErrorEnvelope is published when a subscriber of T fails to handle Message.
type ErrorEnvelope[T any] struct {
	Err       error
	Message   T
	Timestamp strfmt.DateTime
}

func (ErrorEnvelope[T]) routedFailure() {}

// Erase returns the type-erased form of the envelope.
func (e ErrorEnvelope[T]) Erase() Error {
	return Error{
		Err:         e.Err,
		Message:     e.Message,
		MessageType: reflect.TypeFor[T]().String(),
		Timestamp:   e.Timestamp,
	}
}

// MarshalJSON renders the envelope like its erased form.
func (e ErrorEnvelope[T]) MarshalJSON() ([]byte, error) {
	return e.Erase().MarshalJSON()
}

// Error is the type-erased counterpart of ErrorEnvelope. It is published next
// to every ErrorEnvelope so a single subscriber can observe all failures.
type Error struct {
	Err         error
	Message     any
	MessageType string
	Timestamp   strfmt.DateTime
}

func (Error) routedFailure() {}

func (e Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("handling %s failed", e.MessageType)
	}
	return fmt.Sprintf("handling %s: %v", e.MessageType, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements custom JSON marshaling for Error. A message that
// cannot be rendered as JSON is rendered with fmt instead.
func (e Error) MarshalJSON() ([]byte, error) {
	result := errorJSON

	var err error
	if e.Err != nil {
		result, err = sjson.SetBytes(result, "error", e.Err.Error())
		if err != nil {
			return nil, err
		}
	}

	if e.MessageType != "" {
		result, err = sjson.SetBytes(result, "message_type", e.MessageType)
		if err != nil {
			return nil, err
		}
	}

	if e.Message != nil {
		msgBytes, merr := json.Marshal(e.Message)
		if merr != nil {
			result, err = sjson.SetBytes(result, "message", fmt.Sprintf("%+v", e.Message))
		} else {
			result, err = sjson.SetRawBytes(result, "message", msgBytes)
		}
		if err != nil {
			return nil, err
		}
	}

	if !time.Time(e.Timestamp).IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", e.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Error. The original
// error type and message type are lost: Err becomes a plain error carrying the
// message and Message the generic JSON decoding of the payload.
func (e *Error) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "error" {
		return fmt.Errorf("missing or invalid type, expected 'error'")
	}

	*e = Error{}
	if errMsg := gjson.GetBytes(data, "error"); errMsg.Exists() {
		e.Err = errors.New(errMsg.String())
	}
	e.MessageType = gjson.GetBytes(data, "message_type").String()

	if msg := gjson.GetBytes(data, "message"); msg.Exists() {
		var v any
		if err := json.Unmarshal([]byte(msg.Raw), &v); err != nil {
			return fmt.Errorf("invalid message: %w", err)
		}
		e.Message = v
	}

	if ts := gjson.GetBytes(data, "timestamp"); ts.Exists() {
		dt, err := strfmt.ParseDateTime(ts.String())
		if err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
		e.Timestamp = dt
	}
	return nil
}
