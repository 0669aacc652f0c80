// Package loopback 在内存中驱动一次完整的DHE_RSA握手：client和server各自持有一个session.State，
// 握手消息按flight交换，之后互相收发应用数据
package loopback

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/yly97/tlsfront/pkg/layer"
	"github.com/yly97/tlsfront/pkg/session"
	"github.com/yly97/tlsfront/pkg/util"
)

const (
	rsaKeyBits          = 2048
	certCommonName      = "tlsfront.loopback"
	defaultCertLifetime = 24 * time.Hour
)

// Segment 一段线上数据及其发送方
type Segment struct {
	From session.Role
	Data []byte
}

type Result struct {
	ClientRandom   []byte
	ServerRandom   []byte
	MasterSecret   []byte
	ClientFinished []byte
	ServerFinished []byte
	Transcript     []layer.MessageType
	Replies        [][]byte
	Segments       []Segment
	Records        int
}

// KeyLogLine NSS key log格式的一行，可以交给capture解密Segments
func (r *Result) KeyLogLine() string {
	return fmt.Sprintf("CLIENT_RANDOM %s %s", hex.EncodeToString(r.ClientRandom), hex.EncodeToString(r.MasterSecret))
}

type handshake struct {
	cfg         *Config
	key         crypto.Signer
	certificate [][]byte
	client      *endpoint
	server      *endpoint
	result      *Result
}

// deliver 把from积累的数据交给to
func (h *handshake) deliver(from, to *endpoint) error {
	wire := from.flush()
	if len(wire) == 0 {
		return nil
	}
	if h.cfg.Intercept != nil {
		wire = h.cfg.Intercept(from.role, wire)
	}
	h.result.Segments = append(h.result.Segments, Segment{From: from.role, Data: append([]byte{}, wire...)})
	return to.read(wire)
}

func (h *handshake) endpoint(role session.Role) (self, peer *endpoint) {
	if role == session.RoleClient {
		return h.client, h.server
	}
	return h.server, h.client
}

// fail 出错的一端发送Alert，对端收到后结束
func (h *handshake) fail(self, peer *endpoint, err error) error {
	alertErr := session.WrapAlertError(err)
	self.log.Errorf("handshake failed: %v", err)
	self.out = nil
	if werr := self.writeAlert(alertErr.Alert()); werr == nil {
		if perr := h.deliver(self, peer); perr != nil {
			peer.log.Debugf("%v", perr)
		}
	}
	return alertErr
}

func newHandshake(cfg *Config) (*handshake, error) {
	key := cfg.Key
	if key == nil {
		generated, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, err
		}
		key = generated
	}
	h := &handshake{
		cfg:         cfg,
		key:         key,
		certificate: cfg.Certificate,
		client:      newEndpoint(session.RoleClient, cfg),
		server:      newEndpoint(session.RoleServer, cfg),
		result:      &Result{},
	}
	if !isRSA(h) {
		return nil, errNotRSAKey
	}
	if len(h.certificate) == 0 {
		der, err := util.SelfSigned(key, certCommonName, defaultCertLifetime)
		if err != nil {
			return nil, err
		}
		h.certificate = [][]byte{der}
	}
	return h, nil
}

// Run 执行握手并交换cfg.Messages，两端的State在返回前都会Close
func Run(cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	h, err := newHandshake(cfg)
	if err != nil {
		return nil, err
	}
	defer h.client.state.Close()
	defer h.server.state.Close()

	for f := flight1; f != flightDone; {
		self, peer := h.endpoint(f.sender())
		handler, err := f.getFlightHandler()
		if err != nil {
			return nil, err
		}
		self.log.Tracef("handle %s", f)
		next, err := handler(h)
		if err != nil {
			return nil, h.fail(self, peer, err)
		}
		if next != flightDone {
			if err := h.deliver(self, peer); err != nil {
				return nil, h.fail(peer, self, err)
			}
		}
		f = next
	}

	client, server := h.client.state, h.server.state
	h.result.ClientRandom = client.ClientRandom()
	h.result.ServerRandom = client.ServerRandom()
	h.result.MasterSecret = client.MasterSecret()
	h.result.Transcript = server.Transcript().Messages()
	h.client.log.Debugf("handshake finished, %d handshake messages", len(h.result.Transcript))

	for _, data := range cfg.Messages {
		reply, err := echo(h, data)
		if err != nil {
			return nil, session.WrapAlertError(err)
		}
		h.result.Replies = append(h.result.Replies, reply)
	}
	h.result.Records = h.client.records + h.server.records

	return h.result, nil
}
