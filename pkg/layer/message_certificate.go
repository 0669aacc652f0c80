package layer

import (
	"golang.org/x/crypto/cryptobyte"
)

// MessageCertificate 服务端证书链，第一个是叶子证书
type MessageCertificate struct {
	Certificate [][]byte
}

func (m *MessageCertificate) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, cert := range m.Certificate {
			cert := cert
			b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(cert)
			})
		}
	})
	return b.Bytes()
}

func (m *MessageCertificate) Unmarshal(data []byte) error {
	s := cryptobyte.String(data)
	var list cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&list) || !s.Empty() {
		return errLengthMismatch
	}

	m.Certificate = nil
	for !list.Empty() {
		var cert cryptobyte.String
		if !list.ReadUint24LengthPrefixed(&cert) || cert.Empty() {
			return errLengthMismatch
		}
		m.Certificate = append(m.Certificate, append([]byte{}, cert...))
	}

	return nil
}

func (m *MessageCertificate) MessageType() MessageType {
	return TypeCertificate
}
