package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yly97/tlsfront/pkg/layer"
)

func handshakeBytes(t *testing.T, msg layer.Message) []byte {
	t.Helper()
	data, err := (&layer.Handshake{Message: msg}).Marshal()
	require.NoError(t, err)
	return data
}

func TestTranscriptRecord(t *testing.T) {
	tr := NewTranscript()
	hello := handshakeBytes(t, &layer.MessageServerHelloDone{})
	cke := handshakeBytes(t, &layer.MessageClientKeyExchange{PublicKey: []byte{1, 2, 3}})

	require.NoError(t, tr.Record(hello))
	require.NoError(t, tr.Record(cke))
	assert.Equal(t, append(append([]byte{}, hello...), cke...), tr.Bytes())
	assert.Equal(t, []layer.MessageType{layer.TypeServerHelloDone, layer.TypeClientKeyExchange}, tr.Messages())

	// 修改调用方的切片不影响已记录的内容
	hello[0] = 0xff
	assert.Equal(t, byte(layer.TypeServerHelloDone), tr.Bytes()[0])

	assert.ErrorIs(t, tr.Record([]byte{14, 0, 0}), errInvalidHandshake)
	assert.ErrorIs(t, tr.Record([]byte{14, 0, 0, 1}), errInvalidHandshake)
	assert.NotErrorIs(t, tr.Record([]byte{14, 0, 0, 1}), ErrDerivationPrecondition)
	assert.Len(t, tr.Messages(), 2)
}

func TestFinished(t *testing.T) {
	server, client := newPair(t)
	for _, msg := range []layer.Message{
		&layer.MessageServerHelloDone{},
		&layer.MessageClientKeyExchange{PublicKey: []byte{7}},
	} {
		data := handshakeBytes(t, msg)
		require.NoError(t, server.RecordHandshake(data))
		require.NoError(t, client.RecordHandshake(data))
	}

	clientVerify, err := client.ComputeVerify(ModeWrite)
	require.NoError(t, err)
	assert.Len(t, clientVerify, VerifyDataLength)
	require.NoError(t, server.VerifyFinished(clientVerify))

	wrong := append([]byte{}, clientVerify...)
	wrong[0] ^= 1
	assert.ErrorIs(t, server.VerifyFinished(wrong), ErrAuthenticationFailed)
	assert.ErrorIs(t, server.VerifyFinished(clientVerify[:11]), ErrAuthenticationFailed)

	finished := handshakeBytes(t, &layer.MessageFinished{VerifyData: clientVerify})
	require.NoError(t, server.RecordHandshake(finished))
	require.NoError(t, client.RecordHandshake(finished))

	serverVerify, err := server.ComputeVerify(ModeWrite)
	require.NoError(t, err)
	assert.NotEqual(t, clientVerify, serverVerify)
	require.NoError(t, client.VerifyFinished(serverVerify))
}
