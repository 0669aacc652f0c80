// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package session

import (
	"github.com/pion/dtls/v2/pkg/crypto/hash"

	"github.com/yly97/tlsfront/pkg/layer"
	"github.com/yly97/tlsfront/pkg/util"
)

type transcriptItem struct {
	typ  layer.MessageType
	data []byte
}

// Transcript 按收发顺序累积的握手消息（含4字节消息头），只能追加
type Transcript struct {
	items []*transcriptItem
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// Record 追加一条完整的握手消息
func (t *Transcript) Record(msg []byte) error {
	if len(msg) < layer.HandshakeHeaderSize ||
		int(util.BigEndian.Uint24(msg[1:]))+layer.HandshakeHeaderSize != len(msg) {
		return errInvalidHandshake
	}
	t.items = append(t.items, &transcriptItem{
		typ:  layer.MessageType(msg[0]),
		data: append([]byte{}, msg...),
	})
	return nil
}

// Messages 已记录消息的类型，按记录顺序
func (t *Transcript) Messages() []layer.MessageType {
	out := make([]layer.MessageType, 0, len(t.items))
	for _, item := range t.items {
		out = append(out, item.typ)
	}
	return out
}

// Bytes 当前时刻全部消息拼接后的快照
func (t *Transcript) Bytes() []byte {
	merged := []byte{}
	for _, item := range t.items {
		merged = append(merged, item.data...)
	}
	return merged
}

// ComputeVerify 在当前快照上计算Finished的verify_data
func (t *Transcript) ComputeVerify(role Role, mode Mode, masterSecret []byte, h hash.Algorithm) ([]byte, error) {
	return VerifyData(role, mode, t.Bytes(), masterSecret, h)
}
