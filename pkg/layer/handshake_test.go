package layer

import (
	"testing"

	"github.com/pion/dtls/v2/pkg/crypto/clientcertificate"
	"github.com/pion/dtls/v2/pkg/crypto/hash"
	"github.com/pion/dtls/v2/pkg/crypto/signature"
	"github.com/pion/dtls/v2/pkg/crypto/signaturehash"
	"github.com/pion/dtls/v2/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalHandshake(t *testing.T, msg Message) []byte {
	t.Helper()
	data, err := (&Handshake{Message: msg}).Marshal()
	require.NoError(t, err)
	return data
}

func TestHandshakeClientHello(t *testing.T) {
	hello := &MessageClientHello{
		Version:            VersionTLS12,
		SessionID:          []byte{},
		CipherSuites:       []uint16{0x0033},
		CompressionMethods: []*protocol.CompressionMethod{protocol.CompressionMethods()[0]},
	}
	for i := range hello.Random {
		hello.Random[i] = byte(i)
	}
	data := marshalHandshake(t, hello)
	assert.Equal(t, byte(TypeClientHello), data[0])

	h := &Handshake{}
	require.NoError(t, h.Unmarshal(data))
	got, ok := h.Message.(*MessageClientHello)
	require.True(t, ok)
	assert.Equal(t, hello.Random, got.Random)
	assert.Equal(t, []uint16{0x0033}, got.CipherSuites)
	assert.Nil(t, got.Extensions)
	assert.Len(t, got.CompressionMethods, 1)
}

func TestHandshakeServerHelloWithExtensions(t *testing.T) {
	hello := &MessageServerHello{
		Version:           VersionTLS12,
		SessionID:         []byte{0xaa, 0xbb},
		CipherSuite:       0x0033,
		CompressionMethod: *protocol.CompressionMethods()[0],
		Extensions:        []byte{0xff, 0x01, 0x00, 0x01, 0x00},
	}
	hello.Random[31] = 0x42
	data := marshalHandshake(t, hello)

	h := &Handshake{}
	require.NoError(t, h.Unmarshal(data))
	got := h.Message.(*MessageServerHello)
	assert.Equal(t, hello.Random, got.Random)
	assert.Equal(t, hello.SessionID, got.SessionID)
	assert.Equal(t, uint16(0x0033), got.CipherSuite)
	assert.Equal(t, hello.Extensions, got.Extensions)
}

func TestHandshakeLengthMismatch(t *testing.T) {
	data := marshalHandshake(t, &MessageFinished{VerifyData: make([]byte, 12)})
	h := &Handshake{}
	assert.ErrorIs(t, h.Unmarshal(data[:len(data)-1]), errLengthMismatch)
	assert.ErrorIs(t, h.Unmarshal([]byte{99, 0, 0, 0}), errInvalidHandshakeType)
	assert.ErrorIs(t, (&Handshake{}).Unmarshal([]byte{1, 0}), errBufferTooSmall)
	_, err := (&Handshake{}).Marshal()
	assert.ErrorIs(t, err, errHandshakeMessageUnset)
}

func TestCipherSuiteIDs(t *testing.T) {
	encoded := encodeCipherSuiteIDs([]uint16{0x0033, 0x0067})
	assert.Equal(t, []byte{0, 4, 0, 0x33, 0, 0x67}, encoded)

	ids, err := decodeCipherSuiteIDs(encoded)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x0033, 0x0067}, ids)

	_, err = decodeCipherSuiteIDs([]byte{0, 3, 0, 0x33, 0})
	assert.ErrorIs(t, err, errLengthMismatch)
	_, err = decodeCipherSuiteIDs([]byte{0, 4, 0, 0x33})
	assert.ErrorIs(t, err, errBufferTooSmall)
}

func TestSplitHandshakes(t *testing.T) {
	done := marshalHandshake(t, &MessageServerHelloDone{})
	finished := marshalHandshake(t, &MessageFinished{VerifyData: []byte{1, 2, 3}})
	stream := append(append([]byte{}, done...), finished...)

	msgs, rest := SplitHandshakes(stream[:len(stream)-1])
	require.Len(t, msgs, 1)
	assert.Equal(t, done, msgs[0])
	assert.Equal(t, finished[:len(finished)-1], rest)

	msgs, rest = SplitHandshakes(stream)
	require.Len(t, msgs, 2)
	assert.Empty(t, rest)
}

func TestKeyExchangeMessages(t *testing.T) {
	ske := &MessageServerKeyExchange{
		Params:    ServerDHParams{P: []byte{23}, G: []byte{5}, Ys: []byte{8}},
		Algorithm: signaturehash.Algorithm{Hash: hash.SHA256, Signature: signature.RSA},
		Signature: []byte{0xde, 0xad},
	}
	data, err := ske.Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 23, 0, 1, 5, 0, 1, 8, 0x04, 0x01, 0, 2, 0xde, 0xad}, data)

	params, err := ske.Params.Marshal()
	require.NoError(t, err)
	assert.Equal(t, data[:9], params)

	got := &MessageServerKeyExchange{}
	require.NoError(t, got.Unmarshal(data))
	assert.Equal(t, ske, got)

	assert.ErrorIs(t, (&MessageServerKeyExchange{}).Unmarshal(data[:8]), errInvalidKeyExchange)
	assert.ErrorIs(t, (&MessageServerKeyExchange{}).Unmarshal(append(append([]byte{}, data...), 0)), errInvalidKeyExchange)
	bad := append([]byte{}, data...)
	bad[9] = 0x77
	assert.ErrorIs(t, (&MessageServerKeyExchange{}).Unmarshal(bad), errInvalidSignatureAlgorithm)

	cke := &MessageClientKeyExchange{PublicKey: []byte{0x01, 0x02}}
	data, err = cke.Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 2, 1, 2}, data)
	gotCke := &MessageClientKeyExchange{}
	require.NoError(t, gotCke.Unmarshal(data))
	assert.Equal(t, cke.PublicKey, gotCke.PublicKey)
	assert.ErrorIs(t, gotCke.Unmarshal([]byte{0, 0}), errInvalidKeyExchange)
}

func TestChangeCipherSpec(t *testing.T) {
	ccs := &ChangeCipherSpec{}
	data, err := ccs.Marshal()
	require.NoError(t, err)
	assert.NoError(t, ccs.Unmarshal(data))
	assert.ErrorIs(t, ccs.Unmarshal([]byte{2}), errInvalidChangeCipherSpec)
}

func TestCertificateMessage(t *testing.T) {
	msg := &MessageCertificate{Certificate: [][]byte{{0x30, 0x01}, {0x30, 0x02, 0x03}}}
	data := marshalHandshake(t, msg)
	assert.Equal(t, []byte{
		0x0b, 0x00, 0x00, 0x0e,
		0x00, 0x00, 0x0b,
		0x00, 0x00, 0x02, 0x30, 0x01,
		0x00, 0x00, 0x03, 0x30, 0x02, 0x03,
	}, data)

	h := &Handshake{}
	require.NoError(t, h.Unmarshal(data))
	assert.Equal(t, msg.Certificate, h.Message.(*MessageCertificate).Certificate)

	assert.ErrorIs(t, (&MessageCertificate{}).Unmarshal([]byte{0x00, 0x00, 0x04, 0x00, 0x00, 0x02, 0x30}), errLengthMismatch)
}

func TestClientAuthMessages(t *testing.T) {
	// 未知的证书类型0x07和签名算法(0x09, 0x01)被跳过
	data := []byte{
		0x02, 0x01, 0x07,
		0x00, 0x04, 0x04, 0x01, 0x09, 0x01,
		0x00, 0x05, 0x00, 0x03, 0x30, 0x01, 0x02,
	}
	h := &Handshake{}
	require.NoError(t, h.Unmarshal(append([]byte{byte(TypeCertificateRequest), 0, 0, byte(len(data))}, data...)))
	req := h.Message.(*MessageCertificateRequest)
	assert.Equal(t, []clientcertificate.Type{clientcertificate.RSASign}, req.CertificateTypes)
	assert.Equal(t, []signaturehash.Algorithm{{Hash: hash.SHA256, Signature: signature.RSA}}, req.SignatureHashAlgorithms)
	assert.Equal(t, [][]byte{{0x30, 0x01, 0x02}}, req.CertificateAuthoritiesNames)

	out, err := req.Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x01, 0x00, 0x02, 0x04, 0x01, 0x00, 0x05, 0x00, 0x03, 0x30, 0x01, 0x02}, out)
	assert.ErrorIs(t, (&MessageCertificateRequest{}).Unmarshal(data[:len(data)-1]), errLengthMismatch)

	verify := &MessageCertificateVerify{
		Algorithm: signaturehash.Algorithm{Hash: hash.SHA256, Signature: signature.RSA},
		Signature: []byte{0xbe, 0xef},
	}
	data = marshalHandshake(t, verify)
	assert.Equal(t, []byte{0x0f, 0x00, 0x00, 0x06, 0x04, 0x01, 0x00, 0x02, 0xbe, 0xef}, data)
	require.NoError(t, h.Unmarshal(data))
	assert.Equal(t, verify, h.Message)

	assert.ErrorIs(t, (&MessageCertificateVerify{}).Unmarshal([]byte{0x04, 0x01, 0x00, 0x03, 0xbe}), errLengthMismatch)
	assert.ErrorIs(t, (&MessageCertificateVerify{}).Unmarshal([]byte{0x77, 0x01, 0x00, 0x00}), errInvalidSignatureAlgorithm)
}
