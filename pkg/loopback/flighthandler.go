package loopback

import (
	"bytes"
	"crypto/rsa"

	"github.com/pion/dtls/v2/pkg/protocol"

	"github.com/yly97/tlsfront/pkg/kex"
	"github.com/yly97/tlsfront/pkg/layer"
	"github.com/yly97/tlsfront/pkg/session"
)

// flightHandler 处理收到的上一个flight并生成下一个flight
type flightHandler func(h *handshake) (flightVal, error)

func nullCompression() *protocol.CompressionMethod {
	return protocol.CompressionMethods()[0]
}

func randomArray(b []byte) (out [layer.RandomLength]byte) {
	copy(out[:], b)
	return
}

// flight1 ClientHello
func flight1Handle(h *handshake) (flightVal, error) {
	c := h.client
	clientRandom, err := c.state.GenerateLocalRandom()
	if err != nil {
		return 0, err
	}

	hello := &layer.MessageClientHello{
		Version:            layer.VersionTLS12,
		Random:             randomArray(clientRandom),
		SessionID:          []byte{},
		CipherSuites:       []uint16{session.DefaultSuite.ID},
		CompressionMethods: []*protocol.CompressionMethod{nullCompression()},
	}
	if err := c.writeHandshake(hello); err != nil {
		return 0, err
	}
	return flight2, nil
}

// flight2 ServerHello, Certificate, ServerKeyExchange, ServerHelloDone
func flight2Handle(h *handshake) (flightVal, error) {
	s := h.server
	msg, err := s.recordHandshake(layer.TypeClientHello)
	if err != nil {
		return 0, err
	}
	clientHello := msg.(*layer.MessageClientHello)
	offered := false
	for _, id := range clientHello.CipherSuites {
		if id == session.DefaultSuite.ID {
			offered = true
		}
	}
	if !offered {
		return 0, errUnsupportedSuite
	}
	if err := s.state.SetPeerRandom(clientHello.Random[:]); err != nil {
		return 0, err
	}

	serverRandom, err := s.state.GenerateLocalRandom()
	if err != nil {
		return 0, err
	}
	serverHello := &layer.MessageServerHello{
		Version:           layer.VersionTLS12,
		Random:            randomArray(serverRandom),
		SessionID:         []byte{},
		CipherSuite:       session.DefaultSuite.ID,
		CompressionMethod: *nullCompression(),
	}
	if err := s.writeHandshake(serverHello); err != nil {
		return 0, err
	}
	if err := s.writeHandshake(&layer.MessageCertificate{Certificate: h.certificate}); err != nil {
		return 0, err
	}

	group := h.cfg.group()
	ys, err := s.state.GenerateKeyExchange(group)
	if err != nil {
		return 0, err
	}
	p, g := group.Params()
	params := layer.ServerDHParams{P: p, G: g, Ys: ys}
	signed, err := params.Marshal()
	if err != nil {
		return 0, err
	}
	sig, err := s.state.SignServerParams(h.key, signed)
	if err != nil {
		return 0, err
	}
	keyExchange := &layer.MessageServerKeyExchange{
		Params:    params,
		Algorithm: sig.Algorithm,
		Signature: sig.Bytes,
	}
	if err := s.writeHandshake(keyExchange); err != nil {
		return 0, err
	}
	if err := s.writeHandshake(&layer.MessageServerHelloDone{}); err != nil {
		return 0, err
	}
	return flight3, nil
}

// flight3 ClientKeyExchange, ChangeCipherSpec, Finished
func flight3Handle(h *handshake) (flightVal, error) {
	c := h.client
	msg, err := c.recordHandshake(layer.TypeServerHello)
	if err != nil {
		return 0, err
	}
	serverHello := msg.(*layer.MessageServerHello)
	if serverHello.CipherSuite != session.DefaultSuite.ID {
		return 0, errUnexpectedSuite
	}
	if err := c.state.SetPeerRandom(serverHello.Random[:]); err != nil {
		return 0, err
	}

	if msg, err = c.recordHandshake(layer.TypeCertificate); err != nil {
		return 0, err
	}
	if err := c.state.SetPeerCertificates(msg.(*layer.MessageCertificate).Certificate); err != nil {
		return 0, err
	}

	if msg, err = c.recordHandshake(layer.TypeServerKeyExchange); err != nil {
		return 0, err
	}
	keyExchange := msg.(*layer.MessageServerKeyExchange)
	signed, err := keyExchange.Params.Marshal()
	if err != nil {
		return 0, err
	}
	sig := &session.Signature{Algorithm: keyExchange.Algorithm, Bytes: keyExchange.Signature}
	if err := c.state.VerifyServerParams(signed, sig); err != nil {
		return 0, err
	}
	group, err := kex.NewGroup(keyExchange.Params.P, keyExchange.Params.G)
	if err != nil {
		return 0, err
	}

	if _, err := c.recordHandshake(layer.TypeServerHelloDone); err != nil {
		return 0, err
	}

	yc, err := c.state.GenerateKeyExchange(group)
	if err != nil {
		return 0, err
	}
	if err := c.state.SetPeerKeyExchange(keyExchange.Params.Ys); err != nil {
		return 0, err
	}
	if err := c.writeHandshake(&layer.MessageClientKeyExchange{PublicKey: yc}); err != nil {
		return 0, err
	}
	if err := c.writeChangeCipherSpec(); err != nil {
		return 0, err
	}
	verifyData, err := c.state.ComputeVerify(session.ModeWrite)
	if err != nil {
		return 0, err
	}
	h.result.ClientFinished = verifyData
	if err := c.writeHandshake(&layer.MessageFinished{VerifyData: verifyData}); err != nil {
		return 0, err
	}
	return flight4, nil
}

// flight4 ChangeCipherSpec, Finished
func flight4Handle(h *handshake) (flightVal, error) {
	s := h.server
	msg, err := s.recordHandshake(layer.TypeClientKeyExchange)
	if err != nil {
		return 0, err
	}
	if err := s.state.SetPeerKeyExchange(msg.(*layer.MessageClientKeyExchange).PublicKey); err != nil {
		return 0, err
	}
	if err := s.changeCipherSpec(); err != nil {
		return 0, err
	}
	if err := verifyFinished(s); err != nil {
		return 0, err
	}

	if err := s.writeChangeCipherSpec(); err != nil {
		return 0, err
	}
	verifyData, err := s.state.ComputeVerify(session.ModeWrite)
	if err != nil {
		return 0, err
	}
	h.result.ServerFinished = verifyData
	if err := s.writeHandshake(&layer.MessageFinished{VerifyData: verifyData}); err != nil {
		return 0, err
	}
	return flight5, nil
}

// flight5 client校验server的Finished，之后交换应用数据
func flight5Handle(h *handshake) (flightVal, error) {
	c := h.client
	if err := c.changeCipherSpec(); err != nil {
		return 0, err
	}
	if err := verifyFinished(c); err != nil {
		return 0, err
	}
	return flightDone, nil
}

// verifyFinished 先用收到Finished之前的握手记录校验，再把Finished本身记录下来
func verifyFinished(e *endpoint) error {
	msg, raw, err := e.handshake(layer.TypeFinished)
	if err != nil {
		return err
	}
	if err := e.state.VerifyFinished(msg.(*layer.MessageFinished).VerifyData); err != nil {
		return err
	}
	if e.pending() {
		return errTrailingHandshake
	}
	return e.state.RecordHandshake(raw)
}

func isRSA(h *handshake) bool {
	_, ok := h.key.Public().(*rsa.PublicKey)
	return ok
}

func echo(h *handshake, data []byte) ([]byte, error) {
	if err := h.client.writeRecord(layer.ContentTypeApplicationData, data); err != nil {
		return nil, err
	}
	if err := h.deliver(h.client, h.server); err != nil {
		return nil, err
	}
	received, err := h.server.applicationData()
	if err != nil {
		return nil, err
	}
	if err := h.server.writeRecord(layer.ContentTypeApplicationData, received); err != nil {
		return nil, err
	}
	if err := h.deliver(h.server, h.client); err != nil {
		return nil, err
	}
	reply, err := h.client.applicationData()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(reply, data) {
		return nil, errReplyMismatch
	}
	return reply, nil
}
