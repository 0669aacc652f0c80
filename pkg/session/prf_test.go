package session

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/pion/dtls/v2/pkg/crypto/hash"
	"github.com/pion/dtls/v2/pkg/crypto/prf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

const (
	vectorPreMaster    = "03023f7527316bc12cbcd69e4b9e8275d62c028f27e65c745cfcddc7ce01bd3570a111378b63848127f1c36e5f9e4890"
	vectorClientRandom = "4ae66364b5ea56b20ce4e25555aed2d7e67f42788dd03f3fee4adae0459ab106"
	vectorServerRandom = "4ae66363ab815cbf6a248b87d6b556184e945e9b97fbdf247858b0bdafacfa1c"
	vectorMaster       = "8eebebff4e6b9039f8e44bc439478e94c4da6a3a8216f02295749c04551fbd3f04c2ff8b5de630c279fea1cf7b81182d"
	vectorKeyBlock     = "230030104f6b06c015642e3c28a2c73a2f4d529af1a96e51336311b60515c94d49c3c8ffb4b2d6491b3f15624e4fe034cadc751974c3ef9144f97313d6a975a1054db71bd3facaa4"
)

func TestPHashVectors(t *testing.T) {
	cases := []struct {
		name     string
		secret   string
		label    string
		seed     string
		length   int
		expected string
	}{
		{
			name:     "test label 100 bytes",
			secret:   "9bbe436ba940f017b17652849a71db35",
			label:    "test label",
			seed:     "a0ba9f936cda311827a6f796ffd5198c",
			length:   100,
			expected: "e3f229ba727be17b8d122620557cd453c2aab21d07c3d495329b52d4e61edb5a6b301791e90d35c9c9a46b4e14baf9af0fa022f7077def17abfd3797c0564bab4fbc91666e9def9b97fce34f796789baa48082d122ee42c5a72e5a5110fff70187347b66",
		},
		{
			name:     "test label 32 bytes",
			secret:   "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b",
			label:    "test label",
			seed:     "a0b1c2d3e4f5061728394a5b6c7d8e9f",
			length:   32,
			expected: "f4a9893edbd708eba2eda113b67a935e26d41b88c2a3f8955b4afec74cae4490",
		},
		{
			name:     "client finished",
			secret:   vectorMaster,
			label:    "client finished",
			seed:     "e4cd60fc32b8c8f0d1a78d6a2a81372c5f72c5e8ba28f8c4f3d6e5a4b3c2d1e0",
			length:   12,
			expected: "00036f2389378f6d08af3ef6",
		},
		{
			name:     "server finished",
			secret:   vectorMaster,
			label:    "server finished",
			seed:     "e4cd60fc32b8c8f0d1a78d6a2a81372c5f72c5e8ba28f8c4f3d6e5a4b3c2d1e0",
			length:   12,
			expected: "ba2cf3bce2be4c651129336f",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			seed := append([]byte(c.label), mustHex(t, c.seed)...)
			out, err := PHash(mustHex(t, c.secret), seed, c.length, hash.SHA256)
			require.NoError(t, err)
			assert.Equal(t, c.expected, hex.EncodeToString(out))

			again, err := PHash(mustHex(t, c.secret), seed, c.length, hash.SHA256)
			require.NoError(t, err)
			assert.Equal(t, out, again)
		})
	}
}

func TestMasterSecretVector(t *testing.T) {
	ms, err := MasterSecret(mustHex(t, vectorPreMaster), mustHex(t, vectorClientRandom), mustHex(t, vectorServerRandom), hash.SHA256)
	require.NoError(t, err)
	assert.Equal(t, vectorMaster, hex.EncodeToString(ms))
}

func TestKeyBlockVector(t *testing.T) {
	kb, err := KeyBlock(mustHex(t, vectorMaster), mustHex(t, vectorServerRandom), mustHex(t, vectorClientRandom), 72, hash.SHA256)
	require.NoError(t, err)
	assert.Equal(t, vectorKeyBlock, hex.EncodeToString(kb))

	// 随机数的顺序不能交换
	swapped, err := KeyBlock(mustHex(t, vectorMaster), mustHex(t, vectorClientRandom), mustHex(t, vectorServerRandom), 72, hash.SHA256)
	require.NoError(t, err)
	assert.NotEqual(t, kb, swapped)
}

func TestKeyBlockMatchesPion(t *testing.T) {
	ms := mustHex(t, vectorMaster)
	cr, sr := mustHex(t, vectorClientRandom), mustHex(t, vectorServerRandom)

	kb, err := KeyBlock(ms, sr, cr, DefaultSuite.KeyBlockLength(), hash.SHA256)
	require.NoError(t, err)
	keys, err := prf.GenerateEncryptionKeys(ms, cr, sr, 20, 16, 0, sha256.New)
	require.NoError(t, err)

	assert.Equal(t, keys.ClientMACKey, kb[0:20])
	assert.Equal(t, keys.ServerMACKey, kb[20:40])
	assert.Equal(t, keys.ClientWriteKey, kb[40:56])
	assert.Equal(t, keys.ServerWriteKey, kb[56:72])
}

func TestVerifyDataLabels(t *testing.T) {
	ms := mustHex(t, vectorMaster)
	transcript := []byte("handshake messages")

	serverWrite, err := VerifyData(RoleServer, ModeWrite, transcript, ms, hash.SHA256)
	require.NoError(t, err)
	clientWrite, err := VerifyData(RoleClient, ModeWrite, transcript, ms, hash.SHA256)
	require.NoError(t, err)
	serverRead, err := VerifyData(RoleServer, ModeRead, transcript, ms, hash.SHA256)
	require.NoError(t, err)
	clientRead, err := VerifyData(RoleClient, ModeRead, transcript, ms, hash.SHA256)
	require.NoError(t, err)

	for _, v := range [][]byte{serverWrite, clientWrite, serverRead, clientRead} {
		assert.Len(t, v, VerifyDataLength)
	}
	assert.NotEqual(t, serverWrite, clientWrite)
	assert.Equal(t, serverWrite, clientRead)
	assert.Equal(t, clientWrite, serverRead)

	expected, err := prf.VerifyDataServer(ms, transcript, sha256.New)
	require.NoError(t, err)
	assert.Equal(t, expected, serverWrite)
}

func TestDerivationPreconditions(t *testing.T) {
	random := make([]byte, RandomLength)

	_, err := MasterSecret(nil, random, random, hash.SHA256)
	assert.ErrorIs(t, err, ErrDerivationPrecondition)
	_, err = MasterSecret([]byte{1}, random[:31], random, hash.SHA256)
	assert.ErrorIs(t, err, ErrDerivationPrecondition)
	_, err = KeyBlock(make([]byte, 47), random, random, 72, hash.SHA256)
	assert.ErrorIs(t, err, ErrDerivationPrecondition)
	_, err = VerifyData(RoleServer, ModeWrite, nil, nil, hash.SHA256)
	assert.ErrorIs(t, err, ErrDerivationPrecondition)
	_, err = PHash([]byte{1}, nil, -1, hash.SHA256)
	assert.ErrorIs(t, err, ErrDerivationPrecondition)
}

func TestSuite(t *testing.T) {
	assert.Equal(t, 72, DefaultSuite.KeyBlockLength())
	assert.Equal(t, uint16(0x0401), DefaultSuite.SignatureID())
	assert.Equal(t, uint16(0x0033), DefaultSuite.ID)
	assert.Equal(t, 16, DefaultSuite.BlockSize)
}
