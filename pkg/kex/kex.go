// Package kex 有限域Diffie-Hellman密钥交换
package kex

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"strings"
)

var (
	ErrInvalidKeyExchangeValue = errors.New("invalid key exchange value")
	errInvalidGroup            = errors.New("invalid dh group")
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

const maxKeyAttempts = 64

// RFC 3526 2048-bit MODP Group
const group14Prime = `
	FFFFFFFF FFFFFFFF C90FDAA2 2168C234 C4C6628B 80DC1CD1
	29024E08 8A67CC74 020BBEA6 3B139B22 514A0879 8E3404DD
	EF9519B3 CD3A431B 302B0A6D F25F1437 4FE1356D 6D51C245
	E485B576 625E7EC6 F44C42E9 A637ED6B 0BFF5CB6 F406B7ED
	EE386BFB 5A899FA5 AE9F2411 7C4B1FE6 49286651 ECE45B3D
	C2007CB8 A163BF05 98DA4836 1C55D39A 69163FA8 FD24CF5F
	83655D23 DCA3AD96 1C62F356 208552BB 9ED52907 7096966D
	670C354E 4ABC9804 F1746C08 CA18217C 32905E46 2E36CE3B
	E39E772C 180E8603 9B2783A2 EC07A28F B5C55DF0 6F4C52C9
	DE2BCBF6 95581718 3995497C EA956AE5 15D22618 98FA0510
	15728E5A 8AACAA68 FFFFFFFF FFFFFFFF`

// Group DH群参数
type Group struct {
	P *big.Int
	G *big.Int
}

// Group14 RFC 3526中的2048位群，生成元为2
func Group14() *Group {
	p, _ := new(big.Int).SetString(strings.Join(strings.Fields(group14Prime), ""), 16)
	return &Group{P: p, G: big.NewInt(2)}
}

// Toy 只用于演示和测试的小群
func Toy() *Group {
	return &Group{P: big.NewInt(23), G: big.NewInt(5)}
}

// NewGroup 从ServerKeyExchange里的大端无符号整数构造群
func NewGroup(p, g []byte) (*Group, error) {
	group := &Group{P: new(big.Int).SetBytes(p), G: new(big.Int).SetBytes(g)}
	if group.P.Cmp(big.NewInt(5)) < 0 || group.P.Bit(0) == 0 {
		return nil, errInvalidGroup
	}
	if group.G.Cmp(one) <= 0 || group.G.Cmp(new(big.Int).Sub(group.P, one)) >= 0 {
		return nil, errInvalidGroup
	}
	return group, nil
}

// Size p的字节长度，共享密钥和公钥都按这个长度左侧补零
func (g *Group) Size() int {
	return (g.P.BitLen() + 7) / 8
}

// Params 返回p和g的大端编码
func (g *Group) Params() (p, gen []byte) {
	return g.P.Bytes(), g.G.Bytes()
}

// checkPublic 1 < y < p-1
func (g *Group) checkPublic(y *big.Int) error {
	if y.Cmp(one) <= 0 || y.Cmp(new(big.Int).Sub(g.P, one)) >= 0 {
		return ErrInvalidKeyExchangeValue
	}
	return nil
}

// PrivateKey 本地的私有交换值X以及对应的公开值Y
type PrivateKey struct {
	Group *Group
	X     *big.Int
	Y     *big.Int
}

// GenerateKey 从[2, p-2]中均匀选取X，Y不满足1 < Y < p-1时重新选取
func GenerateKey(group *Group, r io.Reader) (*PrivateKey, error) {
	max := new(big.Int).Sub(group.P, big.NewInt(3))
	if max.Sign() <= 0 {
		return nil, errInvalidGroup
	}
	for i := 0; i < maxKeyAttempts; i++ {
		x, err := rand.Int(r, max)
		if err != nil {
			return nil, err
		}
		key, err := NewPrivateKey(group, x.Add(x, two))
		if errors.Is(err, ErrInvalidKeyExchangeValue) {
			continue
		}
		return key, err
	}
	return nil, errInvalidGroup
}

// NewPrivateKey 使用给定的X，对端会拒绝的Y返回ErrInvalidKeyExchangeValue
func NewPrivateKey(group *Group, x *big.Int) (*PrivateKey, error) {
	if x.Cmp(one) <= 0 || x.Cmp(new(big.Int).Sub(group.P, one)) >= 0 {
		return nil, errInvalidGroup
	}
	y := new(big.Int).Exp(group.G, x, group.P)
	if err := group.checkPublic(y); err != nil {
		return nil, err
	}
	return &PrivateKey{
		Group: group,
		X:     new(big.Int).Set(x),
		Y:     y,
	}, nil
}

// PublicBytes Y的大端编码
func (k *PrivateKey) PublicBytes() []byte {
	return k.Y.FillBytes(make([]byte, k.Group.Size()))
}

// SharedSecret 计算peer^X mod p，peer是对端公开值的大端无符号编码
func (k *PrivateKey) SharedSecret(peer []byte) ([]byte, error) {
	if k.X == nil {
		return nil, errInvalidGroup
	}
	y := new(big.Int).SetBytes(peer)
	if err := k.Group.checkPublic(y); err != nil {
		return nil, err
	}
	z := new(big.Int).Exp(y, k.X, k.Group.P)
	return z.FillBytes(make([]byte, k.Group.Size())), nil
}

// Zero 丢弃私有值，之后SharedSecret不可用
func (k *PrivateKey) Zero() {
	if k.X != nil {
		k.X.SetInt64(0)
		k.X = nil
	}
}
