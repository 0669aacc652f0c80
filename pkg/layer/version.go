package layer

import "fmt"

// ProtocolVersion 记录头以及Hello消息中的版本号
type ProtocolVersion uint16

const (
	VersionTLS10 ProtocolVersion = 0x0301
	VersionTLS11 ProtocolVersion = 0x0302
	VersionTLS12 ProtocolVersion = 0x0303
)

func (v ProtocolVersion) String() string {
	switch v {
	case VersionTLS10:
		return "TLS 1.0"
	case VersionTLS11:
		return "TLS 1.1"
	case VersionTLS12:
		return "TLS 1.2"
	default:
		return fmt.Sprintf("0x%04x", uint16(v))
	}
}
