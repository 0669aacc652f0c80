package capture

import (
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

const (
	snaplen = 65536
	mss     = 1460
)

// Endpoint 连接的一端
type Endpoint struct {
	MAC  net.HardwareAddr
	IP   net.IP
	Port uint16
}

var (
	DefaultClient = Endpoint{
		MAC:  net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01},
		IP:   net.IPv4(10, 0, 0, 1).To4(),
		Port: 49152,
	}
	DefaultServer = Endpoint{
		MAC:  net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02},
		IP:   net.IPv4(10, 0, 0, 2).To4(),
		Port: defaultPort,
	}
)

// Writer 把一条连接两个方向的字节流写成pcap，超过mss的数据拆成多个TCP段
type Writer struct {
	w              *pcapgo.Writer
	client, server Endpoint
	seq            [2]uint32 // 按Direction索引
	ts             time.Time
}

func NewWriter(w io.Writer, client, server Endpoint) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snaplen, layers.LinkTypeEthernet); err != nil {
		return nil, errors.Wrap(err, "write pcap header")
	}
	return &Writer{
		w:      pw,
		client: client,
		server: server,
		seq:    [2]uint32{0x5000, 0x1000},
		ts:     time.Now(),
	}, nil
}

// WriteSegment 写入dir方向上的一段数据
func (w *Writer) WriteSegment(dir Direction, data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > mss {
			n = mss
		}
		if err := w.writePacket(dir, data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (w *Writer) writePacket(dir Direction, payload []byte) error {
	src, dst := w.client, w.server
	if dir == ToClient {
		src, dst = w.server, w.client
	}
	p := &Packet{
		Ethernet: &layers.Ethernet{
			SrcMAC:       src.MAC,
			DstMAC:       dst.MAC,
			EthernetType: layers.EthernetTypeIPv4,
		},
		IPv4: &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolTCP,
			SrcIP:    src.IP,
			DstIP:    dst.IP,
		},
		TCP: &layers.TCP{
			SrcPort: layers.TCPPort(src.Port),
			DstPort: layers.TCPPort(dst.Port),
			Seq:     w.seq[dir],
			Ack:     w.seq[1-dir],
			PSH:     true,
			ACK:     true,
			Window:  65535,
		},
		Payload: payload,
	}
	data, err := p.Serialize()
	if err != nil {
		return err
	}
	w.seq[dir] += uint32(len(payload))
	w.ts = w.ts.Add(time.Millisecond)

	ci := gopacket.CaptureInfo{Timestamp: w.ts, CaptureLength: len(data), Length: len(data)}
	return errors.Wrap(w.w.WritePacket(ci, data), "write packet")
}
