package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/subtle"
	"encoding/binary"
	"hash"
	"math"

	"github.com/yly97/tlsfront/pkg/layer"
	"github.com/yly97/tlsfront/pkg/random"
)

const macHeaderLength = 13 // seq(8) + type(1) + version(2) + length(2)

// halfConn 一个方向上的密钥和序列号
type halfConn struct {
	seq    uint64
	macKey []byte
	encKey []byte
	mac    hash.Hash
	block  cipher.Block
	err    error // 完整性校验失败后该方向不再可用
}

func newHalfConn(suite *Suite, macKey, encKey []byte) (*halfConn, error) {
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	if block.BlockSize() != suite.BlockSize {
		return nil, ErrDerivationPrecondition
	}
	return &halfConn{
		macKey: macKey,
		encKey: encKey,
		mac:    hmac.New(suite.MACHash.CryptoHash().New, macKey),
		block:  block,
	}, nil
}

func (hc *halfConn) computeMAC(typ layer.ContentType, version layer.ProtocolVersion, plaintext []byte) []byte {
	var header [macHeaderLength]byte
	binary.BigEndian.PutUint64(header[:8], hc.seq)
	header[8] = byte(typ)
	binary.BigEndian.PutUint16(header[9:], uint16(version))
	binary.BigEndian.PutUint16(header[11:], uint16(len(plaintext)))

	hc.mac.Reset()
	hc.mac.Write(header[:])
	hc.mac.Write(plaintext)
	return hc.mac.Sum(nil)
}

// seal MAC-then-encrypt，返回 header ‖ IV ‖ ciphertext。
// IV在计算MAC之前取得，取IV失败不消耗序列号
func (hc *halfConn) seal(typ layer.ContentType, version layer.ProtocolVersion, plaintext []byte, src random.Source) ([]byte, error) {
	if hc.err != nil {
		return nil, hc.err
	}
	if len(plaintext) > layer.MaxPlaintextLength {
		return nil, errRecordOverflow
	}
	if hc.seq == math.MaxUint64 {
		return nil, errSequenceNumberOverflow
	}

	blockSize := hc.block.BlockSize()
	iv, err := src.Bytes(blockSize)
	if err != nil {
		return nil, err
	}
	if len(iv) != blockSize {
		return nil, errInvalidRecord
	}

	mac := hc.computeMAC(typ, version, plaintext)
	hc.seq++
	paddingLen := blockSize - (len(plaintext)+len(mac))%blockSize

	payload := make([]byte, blockSize+len(plaintext)+len(mac)+paddingLen)
	copy(payload, iv)
	n := blockSize
	n += copy(payload[n:], plaintext)
	n += copy(payload[n:], mac)
	for i := n; i < len(payload); i++ {
		payload[i] = byte(paddingLen - 1)
	}
	cipher.NewCBCEncrypter(hc.block, iv).CryptBlocks(payload[blockSize:], payload[blockSize:])

	record := &layer.Record{
		Header:  layer.RecordHeader{ContentType: typ, Version: version},
		Payload: payload,
	}
	return record.Marshal()
}

// open 解密并校验一条受保护的记录。填充和MAC都以常数时间检查，
// 两者都通过后才返回明文
func (hc *halfConn) open(data []byte) (layer.ContentType, []byte, error) {
	if hc.err != nil {
		return 0, nil, hc.err
	}

	record := &layer.Record{}
	if err := record.Unmarshal(data); err != nil {
		return 0, nil, err
	}

	blockSize := hc.block.BlockSize()
	macSize := hc.mac.Size()
	payload := record.Payload
	if len(payload)%blockSize != 0 || len(payload) < blockSize+roundUp(macSize+1, blockSize) {
		hc.err = ErrBadPadding
		return 0, nil, hc.err
	}
	if hc.seq == math.MaxUint64 {
		return 0, nil, errSequenceNumberOverflow
	}

	iv := payload[:blockSize]
	decrypted := append([]byte{}, payload[blockSize:]...)
	cipher.NewCBCDecrypter(hc.block, iv).CryptBlocks(decrypted, decrypted)

	paddingLen, paddingGood := extractPadding(decrypted)
	n := len(decrypted) - macSize - paddingLen
	n = subtle.ConstantTimeSelect(int(uint32(n)>>31), 0, n) // if n < 0 { n = 0 }
	remoteMAC := decrypted[n : n+macSize]
	localMAC := hc.computeMAC(record.Header.ContentType, record.Header.Version, decrypted[:n])
	hc.seq++

	if subtle.ConstantTimeCompare(localMAC, remoteMAC)&int(paddingGood) != 1 {
		hc.err = ErrAuthenticationFailed
		if paddingGood != 255 {
			hc.err = ErrBadPadding
		}
		return 0, nil, hc.err
	}
	if n > layer.MaxPlaintextLength {
		return 0, nil, errRecordOverflow
	}

	return record.Header.ContentType, decrypted[:n], nil
}

func (hc *halfConn) zero() {
	for _, b := range [][]byte{hc.macKey, hc.encKey} {
		for i := range b {
			b[i] = 0
		}
	}
	hc.mac = nil
	hc.block = nil
	hc.err = errStateClosed
}

// extractPadding 返回需要去掉的字节数（填充加上长度字节）以及填充是否正确，
// 正确时good为255，否则为0。全程不依赖秘密数据分支
func extractPadding(payload []byte) (toRemove int, good byte) {
	if len(payload) < 1 {
		return 0, 0
	}

	paddingLen := payload[len(payload)-1]
	t := uint(len(payload)-1) - uint(paddingLen)
	// len(payload) > paddingLen 时t的最高位为0
	good = byte(int32(^t) >> 31)

	// 最多255字节填充加上长度字节
	toCheck := 256
	if toCheck > len(payload) {
		toCheck = len(payload)
	}

	for i := 0; i < toCheck; i++ {
		t := uint(paddingLen) - uint(i)
		// i <= paddingLen 时mask全为1
		mask := byte(int32(^t) >> 31)
		b := payload[len(payload)-1-i]
		good &^= mask&paddingLen ^ mask&b
	}

	good &= good << 4
	good &= good << 2
	good &= good << 1
	good = uint8(int8(good) >> 7)

	// 填充错误时只去掉长度字节，剩下的部分照常参与MAC计算
	paddingLen &= good

	toRemove = int(paddingLen) + 1
	return
}

func roundUp(a, b int) int {
	return a + (b-a%b)%b
}
