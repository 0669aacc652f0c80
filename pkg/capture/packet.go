package capture

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Direction 数据包的传输方向，一个Conn只有两个方向
type Direction uint8

const (
	ToClient Direction = 0
	ToServer Direction = 1
)

func (d Direction) String() string {
	if d == ToServer {
		return "client->server"
	}
	return "server->client"
}

// Packet 抓包文件中的一个以太网帧，只处理底层为ethernet、ipv4、tcp的报文
type Packet struct {
	Ethernet *layers.Ethernet
	IPv4     *layers.IPv4
	TCP      *layers.TCP
	Payload  []byte
}

// NewPacket 用gopacket解码，缺少任意一层都返回errInvalidPacket
func NewPacket(data []byte, options gopacket.DecodeOptions) (*Packet, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, options)
	ethernetLayer := packet.Layer(layers.LayerTypeEthernet)
	if ethernetLayer == nil {
		return nil, errInvalidPacket
	}
	ethernet, _ := ethernetLayer.(*layers.Ethernet)
	ipv4Layer := packet.Layer(layers.LayerTypeIPv4)
	if ipv4Layer == nil {
		return nil, errInvalidPacket
	}
	ipv4, _ := ipv4Layer.(*layers.IPv4)
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return nil, errInvalidPacket
	}
	tcp, _ := tcpLayer.(*layers.TCP)

	return &Packet{
		Ethernet: ethernet,
		IPv4:     ipv4,
		TCP:      tcp,
		Payload:  tcp.Payload,
	}, nil
}

// Serialize 编码整个帧，重新计算TCP首部、IPv4首部的长度和校验和字段
func (p *Packet) Serialize() ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	p.TCP.SetNetworkLayerForChecksum(p.IPv4) // tcp校验和需要伪头部
	options := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, options, p.Ethernet, p.IPv4, p.TCP, gopacket.Payload(p.Payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
