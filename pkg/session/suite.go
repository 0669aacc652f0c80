package session

import (
	"crypto/aes"

	"github.com/pion/dtls/v2/pkg/crypto/hash"
	"github.com/pion/dtls/v2/pkg/crypto/prf"
	"github.com/pion/dtls/v2/pkg/crypto/signature"
	"github.com/pion/dtls/v2/pkg/crypto/signaturehash"
)

const (
	MasterSecretLength = 48
	VerifyDataLength   = 12
	RandomLength       = 32
	randomBytesLength  = 28
)

// TLS_DHE_RSA_WITH_AES_128_CBC_SHA
const TLS_DHE_RSA_WITH_AES_128_CBC_SHA uint16 = 0x0033 //nolint:revive,stylecheck

// Suite 单一密码套件的全部参数
type Suite struct {
	ID        uint16
	PRFHash   hash.Algorithm // PRF以及Finished中对握手记录求摘要
	MACHash   hash.Algorithm // 记录层HMAC
	MACLength int
	KeyLength int
	BlockSize int
	Signature signaturehash.Algorithm
}

// DefaultSuite DHE_RSA + AES-128-CBC + HMAC-SHA1，签名算法0x0401
var DefaultSuite = Suite{
	ID:        TLS_DHE_RSA_WITH_AES_128_CBC_SHA,
	PRFHash:   hash.SHA256,
	MACHash:   hash.SHA1,
	MACLength: 20,
	KeyLength: 16,
	BlockSize: aes.BlockSize,
	Signature: signaturehash.Algorithm{Hash: hash.SHA256, Signature: signature.RSA},
}

// KeyBlockLength 2×MAC密钥 + 2×加密密钥
func (s *Suite) KeyBlockLength() int {
	return 2*s.MACLength + 2*s.KeyLength
}

// SignatureID 签名算法在线上的两字节编码
func (s *Suite) SignatureID() uint16 {
	return uint16(s.Signature.Hash)<<8 | uint16(s.Signature.Signature)
}

func hashFunc(a hash.Algorithm) prf.HashFunc {
	return a.CryptoHash().New
}
