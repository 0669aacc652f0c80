package main

import (
	"crypto/x509"
	"flag"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/yly97/tlsfront/pkg/capture"
	"github.com/yly97/tlsfront/pkg/kex"
	"github.com/yly97/tlsfront/pkg/loopback"
	"github.com/yly97/tlsfront/pkg/random"
	"github.com/yly97/tlsfront/pkg/session"
	"github.com/yly97/tlsfront/pkg/util"
)

var errRecordAndReplay = errors.New("-record and -replay are mutually exclusive")

func parseGroup(name string) (*kex.Group, error) {
	switch name {
	case "14", "":
		return kex.Group14(), nil
	case "toy":
		return kex.Toy(), nil
	}
	return nil, fmt.Errorf("unknown group %q", name)
}

// buildLoopbackConfig 按参数加载密钥、证书和随机源，返回的Recorder非空时需要在结束后保存
func buildLoopbackConfig(fs afero.Fs, c *selftestConfig) (*loopback.Config, *random.Recorder, error) {
	if c.Record != "" && c.Replay != "" {
		return nil, nil, errRecordAndReplay
	}
	group, err := parseGroup(c.Group)
	if err != nil {
		return nil, nil, err
	}
	cfg := &loopback.Config{Group: group}

	if c.Key != "" {
		if cfg.Key, err = util.LoadPrivateKey(fs, c.Key); err != nil {
			return nil, nil, err
		}
	}
	if c.Cert != "" {
		cert, err := util.LoadCertificates(fs, c.Cert)
		if err != nil {
			return nil, nil, err
		}
		cfg.Certificate = cert.Certificate
	}
	if c.CA != "" {
		rootCert, err := util.LoadCertificates(fs, c.CA)
		if err != nil {
			return nil, nil, err
		}
		pool := x509.NewCertPool()
		for _, der := range rootCert.Certificate {
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return nil, nil, errors.Wrap(err, "parse root certificate")
			}
			pool.AddCert(cert)
		}
		cfg.RootCAs = pool
	}

	for i := 0; i < c.Messages; i++ {
		cfg.Messages = append(cfg.Messages, []byte(fmt.Sprintf("tlsfront selftest message %d", i)))
	}

	var recorder *random.Recorder
	switch {
	case c.Record != "":
		recorder = random.NewRecorder(random.Crypto{})
		cfg.Rand = recorder
	case c.Replay != "":
		tape, err := random.LoadTape(fs, c.Replay)
		if err != nil {
			return nil, nil, err
		}
		cfg.Rand = random.NewReplay(tape)
	}
	return cfg, recorder, nil
}

func runSelftest(fs afero.Fs, c *selftestConfig, args []string) error {
	fset := flag.NewFlagSet("selftest", flag.ExitOnError)
	fset.StringVar(&c.Key, "key", c.Key, "Path to server RSA private key (PEM), generated if empty")
	fset.StringVar(&c.Cert, "cert", c.Cert, "Path to server certificate chain (PEM), self-signed if empty")
	fset.StringVar(&c.CA, "ca", c.CA, "Path to root certificate used by the client")
	fset.StringVar(&c.Group, "group", c.Group, "DH group (14 or toy)")
	fset.IntVar(&c.Messages, "messages", c.Messages, "Number of application data round trips")
	fset.StringVar(&c.Record, "record", c.Record, "Record every random draw to this tape")
	fset.StringVar(&c.Replay, "replay", c.Replay, "Replay random draws from this tape")
	fset.StringVar(&c.Pcap, "pcap", c.Pcap, "Write the handshake traffic to this pcap file")
	fset.StringVar(&c.KeyLog, "keylog", c.KeyLog, "Write the NSS key log line to this file")
	if err := fset.Parse(args); err != nil {
		return err
	}

	cfg, recorder, err := buildLoopbackConfig(fs, c)
	if err != nil {
		return err
	}
	result, err := loopback.Run(cfg)
	if err != nil {
		var alertErr *session.AlertError
		if errors.As(err, &alertErr) {
			log.Errorf("alert: %s", alertErr.Alert())
		}
		return err
	}

	log.Infof("handshake ok, %d handshake messages, %d records", len(result.Transcript), result.Records)
	log.Infof("client finished %x", result.ClientFinished)
	log.Infof("server finished %x", result.ServerFinished)
	log.Infof("%d application data round trips", len(result.Replies))
	log.Debug(result.KeyLogLine())

	if recorder != nil {
		tape := recorder.Tape()
		if err := tape.Save(fs, c.Record); err != nil {
			return err
		}
		log.Infof("random tape with %d draws saved to %s", tape.Len(), c.Record)
	}
	if c.Pcap != "" {
		if err := writePcap(fs, c.Pcap, result); err != nil {
			return err
		}
		log.Infof("traffic written to %s", c.Pcap)
	}
	if c.KeyLog != "" {
		if err := afero.WriteFile(fs, c.KeyLog, []byte(result.KeyLogLine()+"\n"), 0o600); err != nil {
			return errors.Wrap(err, "write key log")
		}
		log.Infof("key log written to %s", c.KeyLog)
	}
	return nil
}

func writePcap(fs afero.Fs, path string, result *loopback.Result) error {
	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrap(err, "create pcap")
	}
	defer f.Close()

	w, err := capture.NewWriter(f, capture.DefaultClient, capture.DefaultServer)
	if err != nil {
		return err
	}
	for _, seg := range result.Segments {
		dir := capture.ToClient
		if seg.From == session.RoleClient {
			dir = capture.ToServer
		}
		if err := w.WriteSegment(dir, seg.Data); err != nil {
			return err
		}
	}
	return nil
}
