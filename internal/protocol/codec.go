package protocol

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrNoPayload          = errors.New("message has no payload")
)

// Envelope wraps every message on the wire
type Envelope struct {
	Type      Type                `json:"type"`
	RequestID string              `json:"request_id,omitempty"`
	Payload   jsoniter.RawMessage `json:"payload,omitempty"`
}

// New wraps a payload. requestID echoes the client's request so replies can
// be matched; broadcasts leave it empty.
func New(t Type, requestID string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", t, err)
	}
	return &Envelope{Type: t, RequestID: requestID, Payload: data}, nil
}

// Decode unmarshals the payload into v
func (e *Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: %s", ErrNoPayload, e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decoding %s: %w", e.Type, err)
	}
	return nil
}

// Marshal encodes an envelope
func Marshal(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes an envelope and checks its type is known
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Type.Known() {
		return &e, fmt.Errorf("%w: %q", ErrUnknownMessageType, e.Type)
	}
	return &e, nil
}

// Known reports whether t is a message type of this protocol
func (t Type) Known() bool {
	switch t {
	case TypeCreateTable, TypeSit, TypeAction, TypeLeave, TypeAway, TypeState,
		TypeTableCreated, TypeSeated, TypeLeft, TypeTableState, TypeHandSettled, TypeError:
		return true
	}
	return false
}
