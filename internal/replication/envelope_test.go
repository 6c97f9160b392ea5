package replication_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/replication"
)

type dropPayload struct {
	Item         string `json:"item"`
	Instant      bool   `json:"instant"`
	DontFindNext bool   `json:"dont_find_next"`
	Count        int    `json:"count"`
}

func TestEnvelope_StructRoundTrip(t *testing.T) {
	payload, err := replication.Encode(dropPayload{Item: "abc", Instant: true, Count: 3})
	require.NoError(t, err)
	in := replication.Envelope{
		Kind:      replication.KindRPC,
		Actor:     actor.ID("pawn-1"),
		Component: "inventory",
		Method:    "ServerDropEquippable",
		Payload:   payload,
	}
	s, err := in.ToStruct()
	require.NoError(t, err)
	out, err := replication.FromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, in.Kind, out.Kind)
	assert.Equal(t, in.Actor, out.Actor)
	assert.Equal(t, in.Component, out.Component)
	assert.Equal(t, in.Method, out.Method)

	var got dropPayload
	require.NoError(t, replication.Decode(out.Payload, &got))
	assert.Equal(t, dropPayload{Item: "abc", Instant: true, Count: 3}, got)
}

func TestEnvelope_UnknownKindRejected(t *testing.T) {
	_, err := replication.Envelope{Kind: "bogus"}.ToStruct()
	assert.Error(t, err)

	s, err := structpb.NewStruct(map[string]any{"kind": "bogus"})
	require.NoError(t, err)
	_, err = replication.FromStruct(s)
	assert.Error(t, err)

	_, err = replication.FromStruct(nil)
	assert.Error(t, err)
}

func TestEnvelope_NoPayload(t *testing.T) {
	s, err := replication.Envelope{Kind: replication.KindDestroy, Actor: "x"}.ToStruct()
	require.NoError(t, err)
	out, err := replication.FromStruct(s)
	require.NoError(t, err)
	assert.Nil(t, out.Payload)
	assert.Equal(t, actor.ID("x"), out.Actor)
}

func TestEncode_RejectsNonObject(t *testing.T) {
	_, err := replication.Encode([]int{1, 2})
	assert.Error(t, err)
}
