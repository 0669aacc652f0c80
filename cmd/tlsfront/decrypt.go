package main

import (
	"encoding/hex"
	"flag"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/yly97/tlsfront/pkg/capture"
	"github.com/yly97/tlsfront/pkg/layer"
)

var (
	errMissingInput  = errors.New("both -pcap and -keylog are required")
	errDecryptFailed = errors.New("some records failed to decrypt")
)

// decryptStats 统计解出的事件
type decryptStats struct {
	events, decrypted, verifiedFinished, failed int
}

func (s *decryptStats) handle(e *capture.Event) {
	s.events++
	entry := log.WithFields(log.Fields{
		"conn": e.Conn.String(),
		"dir":  e.Dir.String(),
		"type": e.ContentType.String(),
	})
	switch {
	case e.Err != nil:
		s.failed++
		entry.Warnf("%v", e.Err)
		return
	case e.Encrypted && e.Plaintext == nil:
		entry.Info("encrypted, no key")
		return
	}
	if e.Encrypted {
		s.decrypted++
	}

	if e.ContentType == layer.ContentTypeHandshake {
		typ := layer.MessageType(e.Plaintext[0])
		if typ == layer.TypeFinished && e.Verified {
			s.verifiedFinished++
		}
		entry.WithField("verified", e.Verified).Infof("%s, %d bytes", typ, len(e.Plaintext))
		return
	}
	entry.WithField("verified", e.Verified).Infof("%d bytes", len(e.Plaintext))
	if e.ContentType == layer.ContentTypeApplicationData {
		entry.Debugf("\n%s", hex.Dump(e.Plaintext))
	}
}

func runDecrypt(fs afero.Fs, c *decryptConfig, args []string) error {
	fset := flag.NewFlagSet("decrypt", flag.ExitOnError)
	fset.StringVar(&c.Pcap, "pcap", c.Pcap, "Path to pcap file (ethernet link type)")
	fset.StringVar(&c.KeyLog, "keylog", c.KeyLog, "Path to NSS key log file")
	port := fset.Uint("port", uint(c.Port), "Server TCP port")
	if err := fset.Parse(args); err != nil {
		return err
	}
	c.Port = uint16(*port)
	if c.Pcap == "" || c.KeyLog == "" {
		return errMissingInput
	}

	stats, err := decrypt(fs, c)
	if err != nil {
		return err
	}
	log.Infof("%d events, %d records decrypted, %d finished verified", stats.events, stats.decrypted, stats.verifiedFinished)
	if stats.failed > 0 {
		return errors.Wrapf(errDecryptFailed, "%d failures", stats.failed)
	}
	return nil
}

func decrypt(fs afero.Fs, c *decryptConfig) (*decryptStats, error) {
	keyLog, err := capture.LoadKeyLog(fs, c.KeyLog)
	if err != nil {
		return nil, err
	}
	f, err := fs.Open(c.Pcap)
	if err != nil {
		return nil, errors.Wrap(err, "open pcap")
	}
	defer f.Close()

	stats := &decryptStats{}
	d := capture.NewDecoder(&capture.Config{KeyLog: keyLog, Port: c.Port})
	if err := d.Run(f, stats.handle); err != nil {
		return nil, err
	}
	return stats, nil
}
