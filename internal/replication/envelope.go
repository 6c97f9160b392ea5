// Package replication carries envelopes between worlds: an in-memory pipe for tests and
// single-process play, and a gRPC bidi stream for networked play. Envelopes travel as
// google.protobuf.Struct on both transports.
package replication

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
)

// Kind classifies an envelope.
type Kind string

const (
	KindHello    Kind = "hello"
	KindSpawn    Kind = "spawn"
	KindDestroy  Kind = "destroy"
	KindRPC      Kind = "rpc"
	KindProperty Kind = "property"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindHello, KindSpawn, KindDestroy, KindRPC, KindProperty:
		return true
	}
	return false
}

// Envelope is one replication message. Component and Method name the RPC or property;
// Payload holds JSON-compatible values only.
type Envelope struct {
	Kind      Kind
	Actor     actor.ID
	Component string
	Method    string
	Payload   map[string]any
}

// ToStruct converts e to its wire form.
//
// Postcondition: returns an error when e.Kind is unknown or Payload holds a value
// structpb cannot represent.
func (e Envelope) ToStruct() (*structpb.Struct, error) {
	if !e.Kind.IsValid() {
		return nil, fmt.Errorf("replication: unknown envelope kind %q", e.Kind)
	}
	fields := map[string]any{
		"kind":      string(e.Kind),
		"actor":     string(e.Actor),
		"component": e.Component,
		"method":    e.Method,
	}
	if e.Payload != nil {
		fields["payload"] = e.Payload
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("replication: encoding %s %s.%s: %w", e.Kind, e.Component, e.Method, err)
	}
	return s, nil
}

// FromStruct converts a wire struct back into an Envelope.
func FromStruct(s *structpb.Struct) (Envelope, error) {
	if s == nil {
		return Envelope{}, errors.New("replication: nil envelope")
	}
	m := s.AsMap()
	kind, _ := m["kind"].(string)
	e := Envelope{Kind: Kind(kind)}
	if !e.Kind.IsValid() {
		return Envelope{}, fmt.Errorf("replication: unknown envelope kind %q", kind)
	}
	id, _ := m["actor"].(string)
	e.Actor = actor.ID(id)
	e.Component, _ = m["component"].(string)
	e.Method, _ = m["method"].(string)
	if p, ok := m["payload"].(map[string]any); ok {
		e.Payload = p
	}
	return e, nil
}

// Encode converts a payload struct into the generic map carried by an Envelope.
func Encode(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("replication: encoding payload: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("replication: payload %T is not an object: %w", v, err)
	}
	return out, nil
}

// Decode fills v from an envelope payload.
func Decode(payload map[string]any, v any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("replication: decoding payload: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("replication: decoding payload into %T: %w", v, err)
	}
	return nil
}
