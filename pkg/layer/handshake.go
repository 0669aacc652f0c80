package layer

import (
	"github.com/yly97/tlsfront/pkg/util"
)

const HandshakeHeaderSize = 4

// HandshakeHeader
type HandshakeHeader struct {
	MessageType   MessageType
	MessageLength uint32 // uint24
}

func (h *HandshakeHeader) Marshal() ([]byte, error) {
	out := make([]byte, HandshakeHeaderSize)
	out[0] = byte(h.MessageType)
	util.BigEndian.PutUint24(out[1:], h.MessageLength)

	return out, nil
}

func (h *HandshakeHeader) Unmarshal(data []byte) error {
	if len(data) < HandshakeHeaderSize {
		return errBufferTooSmall
	}

	h.MessageType = MessageType(data[0])
	h.MessageLength = util.BigEndian.Uint24(data[1:])

	return nil
}

// Handshake
type Handshake struct {
	Header  HandshakeHeader
	Message Message
}

func (h *Handshake) Marshal() ([]byte, error) {
	if h.Message == nil {
		return nil, errHandshakeMessageUnset
	}

	message, err := h.Message.Marshal()
	if err != nil {
		return nil, err
	}

	h.Header.MessageType = h.Message.MessageType()
	h.Header.MessageLength = uint32(len(message))
	header, err := h.Header.Marshal()
	if err != nil {
		return nil, err
	}
	return append(header, message...), nil
}

func (h *Handshake) Unmarshal(data []byte) error {
	if err := h.Header.Unmarshal(data); err != nil {
		return err
	}

	if uint32(len(data)-HandshakeHeaderSize) != h.Header.MessageLength {
		return errLengthMismatch
	}

	switch h.Header.MessageType {
	case TypeClientHello:
		h.Message = &MessageClientHello{}
	case TypeServerHello:
		h.Message = &MessageServerHello{}
	case TypeCertificate:
		h.Message = &MessageCertificate{}
	case TypeServerKeyExchange:
		h.Message = &MessageServerKeyExchange{}
	case TypeCertificateRequest:
		h.Message = &MessageCertificateRequest{}
	case TypeServerHelloDone:
		h.Message = &MessageServerHelloDone{}
	case TypeCertificateVerify:
		h.Message = &MessageCertificateVerify{}
	case TypeClientKeyExchange:
		h.Message = &MessageClientKeyExchange{}
	case TypeFinished:
		h.Message = &MessageFinished{}
	default:
		return errInvalidHandshakeType
	}

	return h.Message.Unmarshal(data[HandshakeHeaderSize:])
}

func (h *Handshake) ContentType() ContentType {
	return ContentTypeHandshake
}

// SplitHandshakes 一条记录里可能合并了多个握手消息，一个握手消息也可能跨越多条记录，
// 返回完整的消息（包括消息头）以及剩余的不完整部分
func SplitHandshakes(data []byte) (messages [][]byte, rest []byte) {
	for len(data) >= HandshakeHeaderSize {
		n := HandshakeHeaderSize + int(util.BigEndian.Uint24(data[1:]))
		if len(data) < n {
			break
		}
		messages = append(messages, data[:n])
		data = data[n:]
	}
	return messages, data
}
