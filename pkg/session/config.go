package session

import (
	"crypto/x509"

	log "github.com/sirupsen/logrus"

	"github.com/yly97/tlsfront/pkg/random"
)

type Config struct {
	Role    Role
	Rand    random.Source // 默认random.Crypto
	Suite   *Suite        // 默认DefaultSuite
	RootCAs *x509.CertPool
	Logger  *log.Entry // 可以带上连接标识
}

func (c *Config) rand() random.Source {
	if c.Rand == nil {
		return random.Crypto{}
	}
	return c.Rand
}

func (c *Config) suite() *Suite {
	if c.Suite == nil {
		s := DefaultSuite
		return &s
	}
	return c.Suite
}

func (c *Config) logger() *log.Entry {
	if c.Logger == nil {
		return log.WithField("role", c.Role)
	}
	return c.Logger.WithField("role", c.Role)
}
