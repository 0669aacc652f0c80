package capture

import "github.com/yly97/tlsfront/pkg/layer"

const maxPendingSegments = 64

// recordBuffer 按TCP序列号重组一个方向的字节流并切分出完整的TLS记录，
// 乱序到达的段按序列号缓存，重传的部分丢弃
type recordBuffer struct {
	next    uint32
	started bool
	pending map[uint32][]byte
	data    []byte
}

func newRecordBuffer() *recordBuffer {
	return &recordBuffer{
		pending: make(map[uint32][]byte),
	}
}

// merge 放入一个TCP段，返回已经完整的记录（包括记录头），不完整的部分继续缓存
func (b *recordBuffer) merge(seq uint32, payload []byte) ([][]byte, error) {
	if !b.started {
		b.next = seq
		b.started = true
	}
	if len(payload) == 0 {
		return nil, nil
	}

	diff := int32(seq - b.next)
	if diff > 0 {
		if len(b.pending) >= maxPendingSegments {
			return nil, errTooManySegments
		}
		if _, ok := b.pending[seq]; !ok {
			b.pending[seq] = append([]byte{}, payload...)
		}
		return nil, nil
	}
	if int(-diff) >= len(payload) {
		// 完整的重传
		return nil, nil
	}
	b.append(payload[-diff:])

	// 缓存的段如果已经接上（可能与已有数据部分重叠），只取超出b.next的部分
	for progressed := true; progressed; {
		progressed = false
		for s, segment := range b.pending {
			overlap := int32(b.next - s)
			if overlap < 0 {
				continue
			}
			delete(b.pending, s)
			if int(overlap) < len(segment) {
				b.append(segment[overlap:])
				progressed = true
			}
		}
	}

	records, rest, err := layer.SplitRecords(b.data)
	b.data = append([]byte{}, rest...)
	return records, err
}

func (b *recordBuffer) append(data []byte) {
	b.data = append(b.data, data...)
	b.next += uint32(len(data))
}
