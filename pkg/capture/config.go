package capture

import (
	log "github.com/sirupsen/logrus"
)

const defaultPort = 443

type Config struct {
	KeyLog KeyLog
	Port   uint16 // 服务端端口，只处理该端口上的连接，默认443
	Logger *log.Entry
}

func (c *Config) port() uint16 {
	if c.Port == 0 {
		return defaultPort
	}
	return c.Port
}

func (c *Config) logger() *log.Entry {
	if c.Logger == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return c.Logger
}
