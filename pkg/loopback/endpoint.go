package loopback

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/yly97/tlsfront/pkg/layer"
	"github.com/yly97/tlsfront/pkg/session"
)

type inbound struct {
	typ  layer.ContentType
	data []byte
}

// endpoint 连接的一端，ChangeCipherSpec之后的记录经过State加解密
type endpoint struct {
	role       session.Role
	state      *session.State
	log        *log.Entry
	out        []byte
	encrypting bool
	decrypting bool
	fragment   []byte   // 跨记录的不完整握手消息
	sealed     [][]byte // ChangeCipherSpec之后收到、尚未解密的记录
	queue      []inbound
	records    int
}

func newEndpoint(role session.Role, cfg *Config) *endpoint {
	logger := cfg.logger().WithField("side", role)
	return &endpoint{
		role: role,
		state: session.New(&session.Config{
			Role:    role,
			Rand:    cfg.rand(),
			RootCAs: cfg.RootCAs,
			Logger:  logger,
		}),
		log: logger,
	}
}

func (e *endpoint) writeRecord(typ layer.ContentType, payload []byte) error {
	var data []byte
	var err error
	if e.encrypting {
		data, err = e.state.Protect(typ, payload)
	} else {
		record := &layer.Record{
			Header:  layer.RecordHeader{ContentType: typ, Version: e.state.Version()},
			Payload: payload,
		}
		data, err = record.Marshal()
	}
	if err != nil {
		return err
	}
	e.log.Tracef("send %s record, %d bytes", typ, len(data))
	e.out = append(e.out, data...)
	e.records++
	return nil
}

// writeHandshake 编码并记录一条握手消息
func (e *endpoint) writeHandshake(msg layer.Message) error {
	data, err := (&layer.Handshake{Message: msg}).Marshal()
	if err != nil {
		return err
	}
	if err := e.state.RecordHandshake(data); err != nil {
		return err
	}
	e.log.Debugf("send %s", msg.MessageType())
	return e.writeRecord(layer.ContentTypeHandshake, data)
}

func (e *endpoint) writeChangeCipherSpec() error {
	data, _ := (&layer.ChangeCipherSpec{}).Marshal()
	if err := e.writeRecord(layer.ContentTypeChangeCipherSpec, data); err != nil {
		return err
	}
	e.encrypting = true
	return nil
}

func (e *endpoint) writeAlert(alert *layer.Alert) error {
	data, _ := alert.Marshal()
	return e.writeRecord(layer.ContentTypeAlert, data)
}

func (e *endpoint) flush() []byte {
	out := e.out
	e.out = nil
	return out
}

// read 把对端的线上数据切分成记录，ChangeCipherSpec之后的记录先原样排队，
// 等到处理函数需要下一条消息时再解密
func (e *endpoint) read(wire []byte) error {
	records, rest, err := layer.SplitRecords(wire)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return errUnexpectedRecord
	}

	for _, raw := range records {
		if e.decrypting {
			e.sealed = append(e.sealed, append([]byte{}, raw...))
			continue
		}
		if err := e.process(layer.ContentType(raw[0]), raw[layer.RecordHeaderSize:]); err != nil {
			return err
		}
	}
	return nil
}

// fill 队列为空时解密排队的记录，直到得到一条完整的消息
func (e *endpoint) fill() error {
	for len(e.queue) == 0 && len(e.sealed) != 0 {
		raw := e.sealed[0]
		e.sealed = e.sealed[1:]
		typ, payload, err := e.state.Unprotect(raw)
		if err != nil {
			return err
		}
		if err := e.process(typ, payload); err != nil {
			return err
		}
	}
	return nil
}

func (e *endpoint) process(typ layer.ContentType, payload []byte) error {
	switch typ {
	case layer.ContentTypeHandshake:
		e.fragment = append(e.fragment, payload...)
		var messages [][]byte
		messages, e.fragment = layer.SplitHandshakes(e.fragment)
		for _, m := range messages {
			e.queue = append(e.queue, inbound{typ: typ, data: append([]byte{}, m...)})
		}
	case layer.ContentTypeChangeCipherSpec:
		if err := (&layer.ChangeCipherSpec{}).Unmarshal(payload); err != nil {
			return err
		}
		e.queue = append(e.queue, inbound{typ: typ})
		e.decrypting = true
	case layer.ContentTypeAlert:
		alert := &layer.Alert{}
		if err := alert.Unmarshal(payload); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", errPeerAlert, alert)
	case layer.ContentTypeApplicationData:
		e.queue = append(e.queue, inbound{typ: typ, data: append([]byte{}, payload...)})
	default:
		return errUnexpectedRecord
	}
	return nil
}

// pending 还有未处理的消息或记录
func (e *endpoint) pending() bool {
	return len(e.queue) != 0 || len(e.sealed) != 0
}

// handshake 取出下一条握手消息，类型必须是want
func (e *endpoint) handshake(want layer.MessageType) (layer.Message, []byte, error) {
	if err := e.fill(); err != nil {
		return nil, nil, err
	}
	if len(e.queue) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", errMissingMessage, want)
	}
	item := e.queue[0]
	if item.typ != layer.ContentTypeHandshake {
		return nil, nil, errUnexpectedType
	}
	h := &layer.Handshake{}
	if err := h.Unmarshal(item.data); err != nil {
		return nil, nil, err
	}
	if h.Header.MessageType != want {
		return nil, nil, fmt.Errorf("%w: want %s, have %s", errUnexpectedType, want, h.Header.MessageType)
	}
	e.queue = e.queue[1:]
	e.log.Debugf("recv %s", want)
	return h.Message, item.data, nil
}

// recordHandshake 取出消息并记录到握手记录中
func (e *endpoint) recordHandshake(want layer.MessageType) (layer.Message, error) {
	msg, raw, err := e.handshake(want)
	if err != nil {
		return nil, err
	}
	if err := e.state.RecordHandshake(raw); err != nil {
		return nil, err
	}
	return msg, nil
}

func (e *endpoint) changeCipherSpec() error {
	if err := e.fill(); err != nil {
		return err
	}
	if len(e.queue) == 0 {
		return fmt.Errorf("%w: ChangeCipherSpec", errMissingMessage)
	}
	if e.queue[0].typ != layer.ContentTypeChangeCipherSpec {
		return errUnexpectedType
	}
	e.queue = e.queue[1:]
	return nil
}

func (e *endpoint) applicationData() ([]byte, error) {
	if err := e.fill(); err != nil {
		return nil, err
	}
	if len(e.queue) == 0 {
		return nil, fmt.Errorf("%w: ApplicationData", errMissingMessage)
	}
	if e.queue[0].typ != layer.ContentTypeApplicationData {
		return nil, errUnexpectedType
	}
	data := e.queue[0].data
	e.queue = e.queue[1:]
	return data, nil
}
