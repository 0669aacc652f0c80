package layer

import (
	"github.com/pion/dtls/v2/pkg/crypto/clientcertificate"
	"github.com/pion/dtls/v2/pkg/crypto/hash"
	"github.com/pion/dtls/v2/pkg/crypto/signature"
	"github.com/pion/dtls/v2/pkg/crypto/signaturehash"
	"golang.org/x/crypto/cryptobyte"
)

// MessageCertificateRequest 服务端要求客户端认证，不认识的证书类型和签名算法解码时跳过
type MessageCertificateRequest struct {
	CertificateTypes            []clientcertificate.Type
	SignatureHashAlgorithms     []signaturehash.Algorithm
	CertificateAuthoritiesNames [][]byte
}

func (m *MessageCertificateRequest) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, v := range m.CertificateTypes {
			b.AddUint8(uint8(v))
		}
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, v := range m.SignatureHashAlgorithms {
			b.AddUint8(uint8(v.Hash))
			b.AddUint8(uint8(v.Signature))
		}
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, ca := range m.CertificateAuthoritiesNames {
			ca := ca
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(ca)
			})
		}
	})
	return b.Bytes()
}

func (m *MessageCertificateRequest) Unmarshal(data []byte) error {
	s := cryptobyte.String(data)
	var types, algorithms, cas cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&types) ||
		!s.ReadUint16LengthPrefixed(&algorithms) || len(algorithms)%2 != 0 ||
		!s.ReadUint16LengthPrefixed(&cas) || !s.Empty() {
		return errLengthMismatch
	}

	m.CertificateTypes = nil
	for _, v := range types {
		certType := clientcertificate.Type(v)
		if _, ok := clientcertificate.Types()[certType]; ok {
			m.CertificateTypes = append(m.CertificateTypes, certType)
		}
	}

	m.SignatureHashAlgorithms = nil
	for i := 0; i < len(algorithms); i += 2 {
		h := hash.Algorithm(algorithms[i])
		sig := signature.Algorithm(algorithms[i+1])
		if _, ok := hash.Algorithms()[h]; !ok {
			continue
		} else if _, ok := signature.Algorithms()[sig]; !ok {
			continue
		}
		m.SignatureHashAlgorithms = append(m.SignatureHashAlgorithms, signaturehash.Algorithm{Hash: h, Signature: sig})
	}

	m.CertificateAuthoritiesNames = nil
	for !cas.Empty() {
		var ca cryptobyte.String
		if !cas.ReadUint16LengthPrefixed(&ca) {
			return errLengthMismatch
		}
		m.CertificateAuthoritiesNames = append(m.CertificateAuthoritiesNames, append([]byte{}, ca...))
	}

	return nil
}

func (m *MessageCertificateRequest) MessageType() MessageType {
	return TypeCertificateRequest
}

// MessageCertificateVerify 客户端对到此为止的握手消息的签名
type MessageCertificateVerify struct {
	Algorithm signaturehash.Algorithm
	Signature []byte
}

func (m *MessageCertificateVerify) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint8(uint8(m.Algorithm.Hash))
	b.AddUint8(uint8(m.Algorithm.Signature))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(m.Signature)
	})
	return b.Bytes()
}

func (m *MessageCertificateVerify) Unmarshal(data []byte) error {
	s := cryptobyte.String(data)
	var h, sig uint8
	var signatureBytes cryptobyte.String
	if !s.ReadUint8(&h) || !s.ReadUint8(&sig) ||
		!s.ReadUint16LengthPrefixed(&signatureBytes) || !s.Empty() {
		return errLengthMismatch
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

func (m *MessageCertificateVerify) MessageType() MessageType {
	return TypeCertificateVerify
}
