package capture

import (
	"encoding/binary"
	"net"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/yly97/tlsfront/pkg/session"
)

// ConnID
type ConnID struct {
	SrcIP   net.IP
	SrcPort uint16
	DstIP   net.IP
	DstPort uint16
}

func GetIdFromPacket(packet *Packet) *ConnID {
	return &ConnID{
		SrcIP:   packet.IPv4.SrcIP,
		SrcPort: uint16(packet.TCP.SrcPort),
		DstIP:   packet.IPv4.DstIP,
		DstPort: uint16(packet.TCP.DstPort),
	}
}

// Bytes 返回[SrcIP,SrcPort,DstIP,DstPort]的字节切片
func (c *ConnID) Bytes() []byte {
	b := make([]byte, 12)
	copy(b, c.SrcIP.To4())
	binary.BigEndian.PutUint16(b[4:], c.SrcPort)
	copy(b[6:], c.DstIP.To4())
	binary.BigEndian.PutUint16(b[10:], c.DstPort)
	return b
}

// ReverseBytes 返回[DstIP,DstPort,SrcIP,SrcPort]的字节切片
func (c *ConnID) ReverseBytes() []byte {
	b := make([]byte, 12)
	copy(b, c.DstIP.To4())
	binary.BigEndian.PutUint16(b[4:], c.DstPort)
	copy(b[6:], c.SrcIP.To4())
	binary.BigEndian.PutUint16(b[10:], c.SrcPort)
	return b
}

// String 返回字符串标识的ConnID（[srcIP:srcPort -> dstIP:dstPort]）
func (c *ConnID) String() string {
	ids := "[" + c.SrcIP.String() + ":" + strconv.Itoa(int(c.SrcPort))
	ids += " -> "
	ids += c.DstIP.String() + ":" + strconv.Itoa(int(c.DstPort)) + "]"
	return ids
}

// getIdPair
func (c *ConnID) getIdPair() (string, string) {
	return string(c.Bytes()), string(c.ReverseBytes())
}

// stream 一个方向上的状态
type stream struct {
	records   *recordBuffer
	handshake []byte // 不完整的握手消息
	encrypted bool   // 已收到ChangeCipherSpec
	failed    bool   // 解密失败后该方向不再处理
	closed    bool
}

// Conn 一条被观察的TCP连接，cid的源端是client
type Conn struct {
	cid        *ConnID
	clientIP   net.IP // 只在构造时设置
	clientPort uint16
	log        *log.Entry

	toServer, toClient *stream

	clientRandom, serverRandom []byte
	pending                    [][]byte // 在密钥就绪之前收到的握手消息

	// serverView读取client发出的记录，clientView读取server发出的记录
	serverView, clientView *session.State
}

func newConn(cid *ConnID, logger *log.Entry) *Conn {
	return &Conn{
		cid:        cid,
		clientIP:   cid.SrcIP,
		clientPort: cid.SrcPort,
		log:        logger.WithField("conn", cid.String()),
		toServer:   &stream{records: newRecordBuffer()},
		toClient:   &stream{records: newRecordBuffer()},
	}
}

// ConnID
func (c *Conn) ConnID() *ConnID {
	return c.cid
}

// Dest 传入数据包的源地址，用来判断数据包的接收方
func (c *Conn) Dest(srcIP net.IP, srcPort uint16) Direction {
	if srcIP.Equal(c.clientIP) && srcPort == c.clientPort {
		return ToServer
	}
	return ToClient
}

func (c *Conn) stream(dir Direction) *stream {
	if dir == ToServer {
		return c.toServer
	}
	return c.toClient
}

// view 解密dir方向记录的State
func (c *Conn) view(dir Direction) *session.State {
	if dir == ToServer {
		return c.serverView
	}
	return c.clientView
}

// recordHandshake 握手消息按线上顺序同时记录到两个State，密钥就绪之前先缓存
func (c *Conn) recordHandshake(msg []byte) error {
	if c.serverView == nil {
		c.pending = append(c.pending, append([]byte{}, msg...))
		return nil
	}
	if err := c.serverView.RecordHandshake(msg); err != nil {
		return err
	}
	return c.clientView.RecordHandshake(msg)
}

// setupViews 两个random都已知后用key log中的master secret重建两个方向的State
func (c *Conn) setupViews(keyLog KeyLog) error {
	ms, ok := keyLog.Lookup(c.clientRandom)
	if !ok {
		c.log.Warn("no master secret for client random, records will not be decrypted")
		return nil
	}

	views := make([]*session.State, 2)
	for i, role := range []session.Role{session.RoleServer, session.RoleClient} {
		s := session.New(&session.Config{Role: role, Logger: c.log})
		if err := s.SetRandoms(c.clientRandom, c.serverRandom); err != nil {
			return err
		}
		if err := s.SetMasterSecret(ms); err != nil {
			return err
		}
		for _, msg := range c.pending {
			if err := s.RecordHandshake(msg); err != nil {
				return err
			}
		}
		views[i] = s
	}
	c.serverView, c.clientView = views[0], views[1]
	c.pending = nil
	c.log.Debug("session keys restored from key log")
	return nil
}

func (c *Conn) close() {
	if c.serverView != nil {
		c.serverView.Close()
		c.clientView.Close()
	}
}

func (c *Conn) supported(suite uint16) bool {
	return suite == session.DefaultSuite.ID
}
