package layer

import "golang.org/x/crypto/cryptobyte"

// decodeCipherSuiteIDs 解析ClientHello中的cipher_suites<2..2^16-2>，长度必须为偶数
func decodeCipherSuiteIDs(buf []byte) ([]uint16, error) {
	s := cryptobyte.String(buf)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) {
		return nil, errBufferTooSmall
	}
	if len(list)%2 != 0 {
		return nil, errLengthMismatch
	}

	cipherSuites := make([]uint16, 0, len(list)/2)
	for !list.Empty() {
		var id uint16
		list.ReadUint16(&id)
		cipherSuites = append(cipherSuites, id)
	}
	return cipherSuites, nil
}

func encodeCipherSuiteIDs(cipherSuites []uint16) []byte {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, id := range cipherSuites {
			b.AddUint16(id)
		}
	})
	return b.BytesOrPanic()
}
