package loopback

import (
	"crypto"
	"crypto/x509"

	log "github.com/sirupsen/logrus"

	"github.com/yly97/tlsfront/pkg/kex"
	"github.com/yly97/tlsfront/pkg/random"
	"github.com/yly97/tlsfront/pkg/session"
)

type Config struct {
	Group       *kex.Group    // 默认kex.Group14()
	Key         crypto.Signer // 服务端RSA私钥，为空时临时生成
	Certificate [][]byte      // 服务端证书链，为空时用Key生成自签名证书
	RootCAs     *x509.CertPool
	Rand        random.Source // client和server共用
	Messages    [][]byte      // 握手完成后client发送、server原样返回的应用数据

	// Intercept 每一段线上数据在送达对端之前都会经过这里，可以修改
	Intercept func(from session.Role, wire []byte) []byte
	Logger    *log.Entry
}

func (c *Config) group() *kex.Group {
	if c.Group == nil {
		return kex.Group14()
	}
	return c.Group
}

func (c *Config) rand() random.Source {
	if c.Rand == nil {
		return random.Crypto{}
	}
	return c.Rand
}

func (c *Config) logger() *log.Entry {
	if c.Logger == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return c.Logger
}
