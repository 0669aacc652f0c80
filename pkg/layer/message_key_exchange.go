package layer

import (
	"github.com/pion/dtls/v2/pkg/crypto/hash"
	"github.com/pion/dtls/v2/pkg/crypto/signature"
	"github.com/pion/dtls/v2/pkg/crypto/signaturehash"
	"golang.org/x/crypto/cryptobyte"
)

// ServerDHParams 服务端公布的DH参数，三个字段都是无符号大端整数
type ServerDHParams struct {
	P  []byte
	G  []byte
	Ys []byte
}

func (p *ServerDHParams) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	p.marshal(&b)
	return b.Bytes()
}

func (p *ServerDHParams) marshal(b *cryptobyte.Builder) {
	for _, v := range [][]byte{p.P, p.G, p.Ys} {
		v := v
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(v)
		})
	}
}

func (p *ServerDHParams) unmarshal(s *cryptobyte.String) bool {
	var dhP, dhG, dhYs cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&dhP) || dhP.Empty() ||
		!s.ReadUint16LengthPrefixed(&dhG) || dhG.Empty() ||
		!s.ReadUint16LengthPrefixed(&dhYs) || dhYs.Empty() {
		return false
	}
	p.P = append([]byte{}, dhP...)
	p.G = append([]byte{}, dhG...)
	p.Ys = append([]byte{}, dhYs...)
	return true
}

// MessageServerKeyExchange DHE_RSA的ServerKeyExchange，签名覆盖
// ClientHello.random + ServerHello.random + params
type MessageServerKeyExchange struct {
	Params    ServerDHParams
	Algorithm signaturehash.Algorithm
	Signature []byte
}

func (m *MessageServerKeyExchange) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	m.Params.marshal(&b)
	b.AddUint8(uint8(m.Algorithm.Hash))
	b.AddUint8(uint8(m.Algorithm.Signature))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(m.Signature)
	})
	return b.Bytes()
}

func (m *MessageServerKeyExchange) Unmarshal(data []byte) error {
	s := cryptobyte.String(data)
	if !m.Params.unmarshal(&s) {
		return errInvalidKeyExchange
	}

	var h, sig uint8
	var signatureBytes cryptobyte.String
	if !s.ReadUint8(&h) || !s.ReadUint8(&sig) ||
		!s.ReadUint16LengthPrefixed(&signatureBytes) || !s.Empty() {
		return errInvalidKeyExchange
	}
	if _, ok := hash.Algorithms()[hash.Algorithm(h)]; !ok {
		return errInvalidSignatureAlgorithm
	}
	if _, ok := signature.Algorithms()[signature.Algorithm(sig)]; !ok {
		return errInvalidSignatureAlgorithm
	}
	m.Algorithm = signaturehash.Algorithm{Hash: hash.Algorithm(h), Signature: signature.Algorithm(sig)}
	m.Signature = append([]byte{}, signatureBytes...)

	return nil
}

func (m *MessageServerKeyExchange) MessageType() MessageType {
	return TypeServerKeyExchange
}

// MessageClientKeyExchange 显式DH公钥Yc
type MessageClientKeyExchange struct {
	PublicKey []byte
}

func (m *MessageClientKeyExchange) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(m.PublicKey)
	})
	return b.Bytes()
}

func (m *MessageClientKeyExchange) Unmarshal(data []byte) error {
	s := cryptobyte.String(data)
	var yc cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&yc) || yc.Empty() || !s.Empty() {
		return errInvalidKeyExchange
	}
	m.PublicKey = append([]byte{}, yc...)
	return nil
}

func (m *MessageClientKeyExchange) MessageType() MessageType {
	return TypeClientKeyExchange
}
