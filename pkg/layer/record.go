package layer

import (
	"encoding/binary"
)

const (
	RecordHeaderSize    = 5
	MaxPlaintextLength  = 1 << 14
	MaxCiphertextLength = MaxPlaintextLength + 2048
)

// RecordHeader
type RecordHeader struct {
	ContentType ContentType     // uint8
	Version     ProtocolVersion // uint16
	Length      uint16
}

func (r *RecordHeader) Marshal() ([]byte, error) {
	out := make([]byte, RecordHeaderSize)
	out[0] = byte(r.ContentType)
	binary.BigEndian.PutUint16(out[1:], uint16(r.Version))
	binary.BigEndian.PutUint16(out[3:], r.Length)

	return out, nil
}

func (r *RecordHeader) Unmarshal(data []byte) error {
	if len(data) < RecordHeaderSize {
		return errBufferTooSmall
	}

	r.ContentType = ContentType(data[0])
	if !r.ContentType.valid() {
		return errInvalidContentType
	}
	r.Version = ProtocolVersion(binary.BigEndian.Uint16(data[1:]))
	if r.Version < VersionTLS10 || r.Version > VersionTLS12 {
		return errUnsupportedVersion
	}
	r.Length = binary.BigEndian.Uint16(data[3:])
	if int(r.Length) > MaxCiphertextLength {
		return errRecordTooLarge
	}

	return nil
}

// Record 记录层的一条记录，Payload可以是明文也可以是IV+密文，对记录层是不透明的
type Record struct {
	Header  RecordHeader
	Payload []byte
}

// Marshal 以Payload的实际长度填充首部的长度字段
func (r *Record) Marshal() ([]byte, error) {
	if len(r.Payload) > MaxCiphertextLength {
		return nil, errRecordTooLarge
	}
	r.Header.Length = uint16(len(r.Payload))

	header, err := r.Header.Marshal()
	if err != nil {
		return nil, err
	}

	return append(header, r.Payload...), nil
}

func (r *Record) Unmarshal(data []byte) error {
	if err := r.Header.Unmarshal(data); err != nil {
		return err
	}
	if len(data) != RecordHeaderSize+int(r.Header.Length) {
		return errLengthMismatch
	}

	r.Payload = append([]byte{}, data[RecordHeaderSize:]...)
	return nil
}

// NewRecord 将content编码后封装成一条明文记录
func NewRecord(content Content, version ProtocolVersion) (*Record, error) {
	payload, err := content.Marshal()
	if err != nil {
		return nil, err
	}
	return &Record{
		Header: RecordHeader{
			ContentType: content.ContentType(),
			Version:     version,
			Length:      uint16(len(payload)),
		},
		Payload: payload,
	}, nil
}

// SplitRecords 从一段连续的字节流中切分出完整的记录，不完整的尾部通过rest返回，
// 首部不合法时返回错误
func SplitRecords(data []byte) (records [][]byte, rest []byte, err error) {
	for len(data) >= RecordHeaderSize {
		h := &RecordHeader{}
		if err := h.Unmarshal(data); err != nil {
			return records, data, err
		}
		n := RecordHeaderSize + int(h.Length)
		if len(data) < n {
			break
		}
		records = append(records, data[:n])
		data = data[n:]
	}
	return records, data, nil
}
