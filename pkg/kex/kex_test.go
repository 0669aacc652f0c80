package kex

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToyVector(t *testing.T) {
	key, err := NewPrivateKey(Toy(), big.NewInt(6))
	require.NoError(t, err)
	assert.Equal(t, []byte{8}, key.PublicBytes())

	secret, err := key.SharedSecret([]byte{8})
	require.NoError(t, err)
	assert.Equal(t, []byte{13}, secret)
}

func TestSharedSecretAgreement(t *testing.T) {
	group := Group14()
	assert.Equal(t, 2048, group.P.BitLen())
	assert.Equal(t, 256, group.Size())

	a, err := GenerateKey(group, rand.Reader)
	require.NoError(t, err)
	b, err := GenerateKey(group, rand.Reader)
	require.NoError(t, err)

	sa, err := a.SharedSecret(b.PublicBytes())
	require.NoError(t, err)
	sb, err := b.SharedSecret(a.PublicBytes())
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
	assert.Len(t, sa, 256)
	assert.Len(t, a.PublicBytes(), 256)
}

func TestSharedSecretLeftPadded(t *testing.T) {
	group := &Group{P: big.NewInt(65519), G: big.NewInt(11)}
	key, err := NewPrivateKey(group, big.NewInt(2))
	require.NoError(t, err)
	// 3^2 = 9 fits in one byte, output still has the prime's length
	secret, err := key.SharedSecret([]byte{3})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 9}, secret)
}

func TestInvalidPeerValue(t *testing.T) {
	key, err := NewPrivateKey(Toy(), big.NewInt(6))
	require.NoError(t, err)

	for _, peer := range [][]byte{{}, {0}, {1}, {22}, {23}, {24}, {0x01, 0x00}} {
		_, err := key.SharedSecret(peer)
		assert.ErrorIs(t, err, ErrInvalidKeyExchangeValue, "peer %x", peer)
	}
}

func TestGenerateKeyRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		key, err := GenerateKey(Toy(), rand.Reader)
		require.NoError(t, err)
		assert.True(t, key.X.Cmp(big.NewInt(2)) >= 0 && key.X.Cmp(big.NewInt(21)) <= 0, "x = %s", key.X)
		assert.NoError(t, key.Group.checkPublic(key.Y), "y = %s", key.Y)
	}
}

func TestGenerateKeyRedraw(t *testing.T) {
	// 5^11 mod 23 = 22 = p-1，对端会拒绝
	_, err := NewPrivateKey(Toy(), big.NewInt(11))
	assert.ErrorIs(t, err, ErrInvalidKeyExchangeValue)

	// rand.Int在[0, 20)中取值，第一字节9对应x=11，第二字节4对应x=6
	key, err := GenerateKey(Toy(), bytes.NewReader([]byte{9, 4}))
	require.NoError(t, err)
	assert.Equal(t, int64(6), key.X.Int64())
	assert.Equal(t, []byte{8}, key.PublicBytes())

	_, err = GenerateKey(Toy(), bytes.NewReader([]byte{9}))
	assert.Error(t, err)
}

func TestZero(t *testing.T) {
	key, err := NewPrivateKey(Toy(), big.NewInt(6))
	require.NoError(t, err)
	key.Zero()
	_, err = key.SharedSecret([]byte{8})
	assert.Error(t, err)
}

func TestNewGroup(t *testing.T) {
	p, g := Group14().Params()
	group, err := NewGroup(p, g)
	require.NoError(t, err)
	assert.Equal(t, 0, group.P.Cmp(Group14().P))

	_, err = NewGroup([]byte{24}, []byte{5})
	assert.Error(t, err)
	_, err = NewGroup([]byte{23}, []byte{1})
	assert.Error(t, err)
	_, err = NewGroup([]byte{23}, []byte{22})
	assert.Error(t, err)
}
