package exception

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-thrift/codec"
	"mini-thrift/protocol"
)

func TestRoundTrip(t *testing.T) {
	for _, typ := range []protocol.Type{protocol.TypeBinary, protocol.TypeCompact} {
		t.Run(typ.String(), func(t *testing.T) {
			in := New(UnknownMethod, "Invalid method name: '%s'", "Bogus")
			data, err := codec.Encode(typ, in)
			require.NoError(t, err)

			out := &ApplicationException{}
			require.NoError(t, codec.Decode(typ, data, out, nil))
			assert.Equal(t, in, out)
		})
	}
}

func TestEmptyMessageOmitted(t *testing.T) {
	in := &ApplicationException{Kind: MissingResult}
	data, err := codec.Encode(protocol.TypeBinary, in)
	require.NoError(t, err)
	// field header (3) + i32 (4) + stop (1)
	assert.Len(t, data, 8)

	out := &ApplicationException{}
	require.NoError(t, codec.Decode(protocol.TypeBinary, data, out, nil))
	assert.Equal(t, in, out)
}

func TestErrorString(t *testing.T) {
	e := New(InternalError, "boom")
	assert.Equal(t, "application exception (internal error): boom", e.Error())
	assert.Equal(t, "application exception: missing result", (&ApplicationException{Kind: MissingResult}).Error())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

func TestIsKind(t *testing.T) {
	err := errors.Wrap(New(BadSequenceID, "seq 3 != 4"), "call Ping")
	assert.True(t, IsKind(err, BadSequenceID))
	assert.False(t, IsKind(err, MissingResult))
	assert.False(t, IsKind(errors.New("plain"), Unknown))

	ae, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "seq 3 != 4", ae.Message)
}
