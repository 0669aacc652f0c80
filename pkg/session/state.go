// Package session TLS 1.2连接的密码学状态：密钥交换、PRF密钥派生、记录层的加解密以及Finished校验
package session

import (
	"crypto"
	"crypto/subtle"
	"crypto/x509"
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/yly97/tlsfront/pkg/kex"
	"github.com/yly97/tlsfront/pkg/layer"
	"github.com/yly97/tlsfront/pkg/random"
)

// State 一个连接的全部秘密、密钥和序列号。只能由一个goroutine使用
type State struct {
	role    Role
	version layer.ProtocolVersion
	suite   *Suite
	rand    random.Source
	rootCAs *x509.CertPool
	log     *log.Entry

	clientRandom, serverRandom []byte

	localKey        *kex.PrivateKey
	preMasterSecret []byte
	masterSecret    []byte

	read, write *halfConn
	transcript  *Transcript

	peerCertificates []*x509.Certificate
	closed           bool
}

func New(cfg *Config) *State {
	if cfg == nil {
		cfg = &Config{}
	}
	return &State{
		role:       cfg.Role,
		version:    layer.VersionTLS12,
		suite:      cfg.suite(),
		rand:       cfg.rand(),
		rootCAs:    cfg.RootCAs,
		log:        cfg.logger(),
		transcript: NewTranscript(),
	}
}

func (s *State) Role() Role {
	return s.role
}

func (s *State) Version() layer.ProtocolVersion {
	return s.version
}

func (s *State) Suite() *Suite {
	return s.suite
}

func (s *State) ClientRandom() []byte {
	return append([]byte(nil), s.clientRandom...)
}

func (s *State) ServerRandom() []byte {
	return append([]byte(nil), s.serverRandom...)
}

func (s *State) MasterSecret() []byte {
	return append([]byte(nil), s.masterSecret...)
}

func (s *State) ReadSequence() uint64 {
	if s.read == nil {
		return 0
	}
	return s.read.seq
}

func (s *State) WriteSequence() uint64 {
	if s.write == nil {
		return 0
	}
	return s.write.seq
}

// Transcript 已记录的握手消息
func (s *State) Transcript() *Transcript {
	return s.transcript
}

func (s *State) localRandom() *[]byte {
	if s.role == RoleClient {
		return &s.clientRandom
	}
	return &s.serverRandom
}

func (s *State) peerRandom() *[]byte {
	if s.role == RoleClient {
		return &s.serverRandom
	}
	return &s.clientRandom
}

// GenerateLocalRandom 生成本端的random：4字节大端时间戳 + 28字节随机数
func (s *State) GenerateLocalRandom() ([]byte, error) {
	if s.closed {
		return nil, errStateClosed
	}
	local := s.localRandom()
	if *local != nil {
		return nil, errRandomAlreadySet
	}

	ts, err := s.rand.Timestamp()
	if err != nil {
		return nil, err
	}
	b, err := s.rand.Bytes(randomBytesLength)
	if err != nil {
		return nil, err
	}
	if len(b) != randomBytesLength {
		return nil, errInvalidRandom
	}

	out := make([]byte, RandomLength)
	binary.BigEndian.PutUint32(out, ts)
	copy(out[4:], b)
	*local = out
	s.log.Debugf("local random generated, gmt_unix_time %d", ts)

	return append([]byte(nil), out...), nil
}

// SetPeerRandom 保存对端Hello中的random
func (s *State) SetPeerRandom(r []byte) error {
	if s.closed {
		return errStateClosed
	}
	if len(r) != RandomLength {
		return errInvalidRandom
	}
	peer := s.peerRandom()
	if *peer != nil {
		return errRandomAlreadySet
	}
	*peer = append([]byte(nil), r...)
	s.log.Debug("peer random set")
	return nil
}

// SetRandoms 同时设置双方的random，用于只观察连接而不参与握手的一方（例如抓包解密）
func (s *State) SetRandoms(clientRandom, serverRandom []byte) error {
	if s.closed {
		return errStateClosed
	}
	if len(clientRandom) != RandomLength || len(serverRandom) != RandomLength {
		return errInvalidRandom
	}
	if s.clientRandom != nil || s.serverRandom != nil {
		return errRandomAlreadySet
	}
	s.clientRandom = append([]byte(nil), clientRandom...)
	s.serverRandom = append([]byte(nil), serverRandom...)
	return nil
}

// GenerateKeyExchange 在给定的群上生成本端的DH私有值，返回公开值Y
func (s *State) GenerateKeyExchange(group *kex.Group) ([]byte, error) {
	if s.closed {
		return nil, errStateClosed
	}
	if s.localKey != nil || s.masterSecret != nil {
		return nil, errKeyExchangeAlreadySet
	}
	key, err := kex.GenerateKey(group, random.Reader(s.rand))
	if err != nil {
		return nil, err
	}
	s.localKey = key
	s.log.Debugf("dh value generated, group size %d", group.Size())
	return key.PublicBytes(), nil
}

// SetPeerKeyExchange 收到对端公开值后计算pre-master secret，
// 随后依次派生master secret和key block，pre-master secret用完即清零
func (s *State) SetPeerKeyExchange(peer []byte) error {
	if s.closed {
		return errStateClosed
	}
	if s.masterSecret != nil {
		return errKeysAlreadyDerived
	}
	if s.localKey == nil || s.clientRandom == nil || s.serverRandom == nil {
		return ErrDerivationPrecondition
	}

	pms, err := s.localKey.SharedSecret(peer)
	if err != nil {
		s.log.Debugf("peer key exchange value rejected: %v", err)
		return err
	}
	s.preMasterSecret = pms
	defer s.zeroPreMasterSecret()

	ms, err := MasterSecret(s.preMasterSecret, s.clientRandom, s.serverRandom, s.suite.PRFHash)
	if err != nil {
		return err
	}
	s.localKey.Zero()
	return s.setMasterSecret(ms)
}

// SetMasterSecret 直接使用已知的master secret（例如从key log中得到），两个random必须已经设置
func (s *State) SetMasterSecret(ms []byte) error {
	if s.closed {
		return errStateClosed
	}
	if s.masterSecret != nil {
		return errKeysAlreadyDerived
	}
	if len(ms) != MasterSecretLength || s.clientRandom == nil || s.serverRandom == nil {
		return ErrDerivationPrecondition
	}
	return s.setMasterSecret(append([]byte(nil), ms...))
}

func (s *State) setMasterSecret(ms []byte) error {
	keyBlock, err := KeyBlock(ms, s.serverRandom, s.clientRandom, s.suite.KeyBlockLength(), s.suite.PRFHash)
	if err != nil {
		return err
	}

	macLen, keyLen := s.suite.MACLength, s.suite.KeyLength
	clientMAC := keyBlock[:macLen]
	serverMAC := keyBlock[macLen : 2*macLen]
	clientKey := keyBlock[2*macLen : 2*macLen+keyLen]
	serverKey := keyBlock[2*macLen+keyLen:]

	// key block按服务端视角排列，客户端读写对调
	readMAC, writeMAC, readKey, writeKey := clientMAC, serverMAC, clientKey, serverKey
	if s.role == RoleClient {
		readMAC, writeMAC, readKey, writeKey = serverMAC, clientMAC, serverKey, clientKey
	}

	read, err := newHalfConn(s.suite, readMAC, readKey)
	if err != nil {
		return err
	}
	write, err := newHalfConn(s.suite, writeMAC, writeKey)
	if err != nil {
		return err
	}

	s.masterSecret = ms
	s.read, s.write = read, write
	s.log.Debugf("keys derived, key block %d bytes", len(keyBlock))
	return nil
}

func (s *State) zeroPreMasterSecret() {
	for i := range s.preMasterSecret {
		s.preMasterSecret[i] = 0
	}
	s.preMasterSecret = nil
}

// Protect 加密一条记录，返回 header ‖ IV ‖ ciphertext
func (s *State) Protect(typ layer.ContentType, plaintext []byte) ([]byte, error) {
	if s.closed {
		return nil, errStateClosed
	}
	if s.write == nil {
		return nil, ErrDerivationPrecondition
	}
	seq := s.write.seq
	out, err := s.write.seal(typ, s.version, plaintext, s.rand)
	if err != nil {
		s.log.Tracef("protect %s seq %d: %v", typ, seq, err)
		return nil, err
	}
	s.log.Tracef("protect %s seq %d, %d -> %d bytes", typ, seq, len(plaintext), len(out))
	return out, nil
}

// Unprotect 解密并校验一条记录。任何完整性错误之后读方向不再可用
func (s *State) Unprotect(record []byte) (layer.ContentType, []byte, error) {
	if s.closed {
		return 0, nil, errStateClosed
	}
	if s.read == nil {
		return 0, nil, ErrDerivationPrecondition
	}
	seq := s.read.seq
	typ, plaintext, err := s.read.open(record)
	if err != nil {
		s.log.Tracef("unprotect seq %d: %v", seq, err)
		return 0, nil, err
	}
	s.log.Tracef("unprotect %s seq %d, %d bytes", typ, seq, len(plaintext))
	return typ, plaintext, nil
}

// RecordHandshake 按收发顺序记录一条握手消息
func (s *State) RecordHandshake(msg []byte) error {
	if s.closed {
		return errStateClosed
	}
	return s.transcript.Record(msg)
}

// ComputeVerify 在当前的握手记录上计算verify_data
func (s *State) ComputeVerify(mode Mode) ([]byte, error) {
	if s.closed {
		return nil, errStateClosed
	}
	if s.masterSecret == nil {
		return nil, ErrDerivationPrecondition
	}
	return s.transcript.ComputeVerify(s.role, mode, s.masterSecret, s.suite.PRFHash)
}

// VerifyFinished 校验对端Finished中的verify_data，需要在记录这条Finished之前调用
func (s *State) VerifyFinished(received []byte) error {
	expected, err := s.ComputeVerify(ModeRead)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(expected, received) != 1 {
		s.log.Debugf("%s finished mismatch", s.role.peer())
		return ErrAuthenticationFailed
	}
	s.log.Debugf("%s finished verified", s.role.peer())
	return nil
}

func (s *State) signedParams(params []byte) ([]byte, error) {
	if s.clientRandom == nil || s.serverRandom == nil {
		return nil, ErrDerivationPrecondition
	}
	data := make([]byte, 0, 2*RandomLength+len(params))
	data = append(data, s.clientRandom...)
	data = append(data, s.serverRandom...)
	return append(data, params...), nil
}

// SignServerParams 对 client_random ‖ server_random ‖ ServerDHParams 签名
func (s *State) SignServerParams(key crypto.Signer, params []byte) (*Signature, error) {
	if s.closed {
		return nil, errStateClosed
	}
	data, err := s.signedParams(params)
	if err != nil {
		return nil, err
	}
	return sign(random.Reader(s.rand), key, data, s.suite.Signature)
}

// SetPeerCertificates 保存服务端证书链，配置了RootCAs时同时校验证书链
func (s *State) SetPeerCertificates(rawCertificates [][]byte) error {
	if s.closed {
		return errStateClosed
	}
	certs, err := loadCertificates(rawCertificates)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadCertificate, err)
	}
	if s.rootCAs != nil {
		if _, err := verifyServerCert(certs, s.rootCAs); err != nil {
			return fmt.Errorf("%w: %v", errBadCertificate, err)
		}
	}
	s.peerCertificates = certs
	return nil
}

// VerifyServerParams 使用服务端叶子证书的公钥校验ServerKeyExchange的签名
func (s *State) VerifyServerParams(params []byte, sig *Signature) error {
	if s.closed {
		return errStateClosed
	}
	if len(s.peerCertificates) == 0 {
		return errNoCertificate
	}
	if sig != nil && sig.Algorithm != s.suite.Signature {
		return errUnsupportSignAlgorithm
	}
	data, err := s.signedParams(params)
	if err != nil {
		return err
	}
	return VerifySignature(s.peerCertificates[0].PublicKey, data, sig)
}

// Close 丢弃全部秘密，之后的所有操作都会失败
func (s *State) Close() {
	if s.closed {
		return
	}
	if s.localKey != nil {
		s.localKey.Zero()
		s.localKey = nil
	}
	s.zeroPreMasterSecret()
	for i := range s.masterSecret {
		s.masterSecret[i] = 0
	}
	s.masterSecret = nil
	if s.read != nil {
		s.read.zero()
	}
	if s.write != nil {
		s.write.zero()
	}
	s.closed = true
	s.log.Debug("state closed")
}
