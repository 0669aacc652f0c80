// Package capture 被动解密抓包文件中的TLS 1.2连接：从pcap中重组TCP流，
// 用NSS key log里的master secret恢复两个方向的记录层密钥
package capture

import (
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/yly97/tlsfront/pkg/layer"
)

// Event 一条解出来的消息。握手消息每条一个Event，其它类型每条记录一个Event
type Event struct {
	Conn        *ConnID // 源端是client
	Dir         Direction
	ContentType layer.ContentType
	Plaintext   []byte        // 没有密钥时为nil
	Message     layer.Message // 解码后的握手消息
	Encrypted   bool          // 来自ChangeCipherSpec之后的记录
	Verified    bool          // 记录通过了MAC校验，Finished还要求verify_data一致
	Err         error
}

// Decoder 不是并发安全的，一个pcap流用一个Decoder
type Decoder struct {
	config *Config
	log    *log.Entry
	conns  map[string]*Conn // string为通信双方地址的四元组，两个方向都指向同一个Conn
}

func NewDecoder(config *Config) *Decoder {
	if config == nil {
		config = &Config{}
	}
	return &Decoder{
		config: config,
		log:    config.logger(),
		conns:  make(map[string]*Conn),
	}
}

// Run 读取整个pcap流，每解出一条消息调用一次handler。单个连接上的错误只记录日志，
// 只有读取pcap失败时才返回错误
func (d *Decoder) Run(r io.Reader, handler func(*Event)) error {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "open pcap")
	}
	if reader.LinkType() != layers.LinkTypeEthernet {
		return errors.Wrapf(errUnsupportedLinkType, "%s", reader.LinkType())
	}
	defer d.closeAll()

	for n := 1; ; n++ {
		data, _, err := reader.ReadPacketData()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read packet %d", n)
		}
		packet, err := NewPacket(data, gopacket.NoCopy)
		if err != nil {
			d.log.Tracef("skip packet %d: %v", n, err)
			continue
		}
		d.handlePacket(packet, handler)
	}
}

// getConn 返回已存在的Conn或是新创建的Conn，如果Conn已经存在bool返回true，
// 新建时目的端口是服务端口的一方作为client
func (d *Decoder) getConn(cid *ConnID) (*Conn, bool) {
	id1, id2 := cid.getIdPair() // 对应同一个Conn
	if conn, ok := d.conns[id1]; ok {
		return conn, true
	}

	clientSide := cid
	if cid.SrcPort == d.config.port() {
		clientSide = &ConnID{SrcIP: cid.DstIP, SrcPort: cid.DstPort, DstIP: cid.SrcIP, DstPort: cid.SrcPort}
	}
	conn := newConn(clientSide, d.log)
	d.conns[id1] = conn
	d.conns[id2] = conn
	return conn, false
}

func (d *Decoder) delConn(cid *ConnID) {
	id1, id2 := cid.getIdPair()
	if conn, ok := d.conns[id1]; ok {
		conn.close()
	}
	delete(d.conns, id1)
	delete(d.conns, id2)
}

func (d *Decoder) closeAll() {
	for _, conn := range d.conns {
		conn.close()
	}
	d.conns = make(map[string]*Conn)
}

func (d *Decoder) handlePacket(packet *Packet, handler func(*Event)) {
	pid := GetIdFromPacket(packet)
	port := d.config.port()
	if pid.SrcPort != port && pid.DstPort != port {
		return
	}

	conn, ok := d.getConn(pid)
	if !ok {
		conn.log.Debug("new connection")
	}
	dir := conn.Dest(pid.SrcIP, pid.SrcPort) // 根据packet的源地址确定方向
	s := conn.stream(dir)

	if packet.TCP.RST {
		conn.log.Debug("connection reset")
		d.delConn(pid)
		return
	}
	seq := packet.TCP.Seq
	if packet.TCP.SYN {
		seq++
	}
	if !s.failed {
		records, err := s.records.merge(seq, packet.Payload)
		for _, r := range records {
			d.handleRecord(conn, dir, r, handler)
		}
		if err != nil {
			s.failed = true
			conn.log.Warnf("%s stream dropped: %v", dir, err)
			handler(&Event{Conn: conn.cid, Dir: dir, Err: err})
		}
	}

	if packet.TCP.FIN {
		s.closed = true
		if conn.toServer.closed && conn.toClient.closed {
			conn.log.Debug("connection closed")
			d.delConn(pid)
		}
	}
}

func (d *Decoder) handleRecord(conn *Conn, dir Direction, data []byte, handler func(*Event)) {
	s := conn.stream(dir)
	if s.failed {
		return
	}
	h := &layer.RecordHeader{}
	if err := h.Unmarshal(data); err != nil {
		return
	}
	typ, payload := h.ContentType, data[layer.RecordHeaderSize:]

	if s.encrypted {
		view := conn.view(dir)
		if view == nil {
			handler(&Event{Conn: conn.cid, Dir: dir, ContentType: typ, Encrypted: true})
			return
		}
		var err error
		if typ, payload, err = view.Unprotect(data); err != nil {
			s.failed = true
			conn.log.Warnf("%s record rejected: %v", dir, err)
			handler(&Event{Conn: conn.cid, Dir: dir, ContentType: h.ContentType, Encrypted: true, Err: err})
			return
		}
	}

	switch typ {
	case layer.ContentTypeHandshake:
		if err := d.handleHandshake(conn, dir, payload, handler); err != nil {
			s.failed = true
			conn.log.Warnf("%s handshake: %v", dir, err)
			handler(&Event{Conn: conn.cid, Dir: dir, ContentType: typ, Encrypted: s.encrypted, Err: err})
		}
	case layer.ContentTypeChangeCipherSpec:
		handler(&Event{Conn: conn.cid, Dir: dir, ContentType: typ, Plaintext: payload, Encrypted: s.encrypted, Verified: s.encrypted})
		s.encrypted = true
		conn.log.Debugf("%s change cipher spec", dir)
	default:
		handler(&Event{Conn: conn.cid, Dir: dir, ContentType: typ, Plaintext: payload, Encrypted: s.encrypted, Verified: s.encrypted})
	}
}

// handleHandshake 重组握手消息，从Hello中取出random，收到Finished时先校验再记录
func (d *Decoder) handleHandshake(conn *Conn, dir Direction, payload []byte, handler func(*Event)) error {
	s := conn.stream(dir)
	messages, rest := layer.SplitHandshakes(append(s.handshake, payload...))
	s.handshake = append([]byte{}, rest...)

	for _, msg := range messages {
		typ := layer.MessageType(msg[0])
		ev := &Event{Conn: conn.cid, Dir: dir, ContentType: layer.ContentTypeHandshake, Plaintext: msg, Encrypted: s.encrypted, Verified: s.encrypted}

		h := &layer.Handshake{}
		if err := h.Unmarshal(msg); err != nil {
			if typ == layer.TypeClientHello || typ == layer.TypeServerHello {
				return err
			}
			conn.log.Debugf("%s %s not decoded: %v", dir, typ, err)
		} else {
			ev.Message = h.Message
		}

		switch m := ev.Message.(type) {
		case *layer.MessageClientHello:
			conn.clientRandom = append([]byte{}, m.Random[:]...)
		case *layer.MessageServerHello:
			conn.serverRandom = append([]byte{}, m.Random[:]...)
			if !conn.supported(m.CipherSuite) {
				conn.log.Warnf("cipher suite %#04x not supported", m.CipherSuite)
			} else if conn.clientRandom != nil {
				if err := conn.setupViews(d.config.KeyLog); err != nil {
					return err
				}
			}
		case *layer.MessageCertificateRequest:
			conn.log.Debugf("client certificate requested, %d types", len(m.CertificateTypes))
		case *layer.MessageFinished:
			if view := conn.view(dir); view != nil && s.encrypted {
				ev.Err = view.VerifyFinished(m.VerifyData)
				ev.Verified = ev.Err == nil
				if ev.Err != nil {
					conn.log.Warnf("%s finished: %v", dir, ev.Err)
				}
			}
		}

		if err := conn.recordHandshake(msg); err != nil {
			return err
		}
		handler(ev)
	}
	return nil
}
