// Package random 提供握手和记录层所需的随机数和时间戳来源，测试时可以整体替换为回放实现
package random

import (
	"crypto/rand"
	"errors"
	"io"
	"time"
)

var errNegativeLength = errors.New("negative random length")

// Source 随机字节和时间戳的来源
type Source interface {
	Bytes(n int) ([]byte, error)
	Timestamp() (uint32, error)
}

// Crypto 基于crypto/rand和系统时钟的Source
type Crypto struct{}

func (Crypto) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errNegativeLength
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (Crypto) Timestamp() (uint32, error) {
	return uint32(time.Now().Unix()), nil
}

type reader struct {
	src Source
}

// Reader 把Source适配成io.Reader，供math/big和crypto/rsa等需要io.Reader的地方使用
func Reader(src Source) io.Reader {
	return &reader{src: src}
}

func (r *reader) Read(p []byte) (int, error) {
	b, err := r.src.Bytes(len(p))
	if err != nil {
		return 0, err
	}
	return copy(p, b), nil
}
