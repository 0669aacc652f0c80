package util

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/afero"
)

var (
	errNotCertificate = errors.New("file is not a certificate")
	errNoCertificate  = errors.New("no certificate found")
	errNoPrivateKey   = errors.New("no private key found")
	errNotRSAKey      = errors.New("private key is not an RSA key")
)

// LoadCertificates 从文件中加载证书
func LoadCertificates(fs afero.Fs, path string) (*tls.Certificate, error) {
	data, err := afero.ReadFile(fs, filepath.Clean(path))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "LoadCertificates.ReadFile")
	}

	var certificate tls.Certificate
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			return nil, errNotCertificate
		}
		certificate.Certificate = append(certificate.Certificate, block.Bytes)
		data = rest
	}

	if len(certificate.Certificate) == 0 {
		return nil, errNoCertificate
	}

	return &certificate, nil
}

// LoadPrivateKey 从PEM文件中加载RSA私钥，支持PKCS#1和PKCS#8两种格式，
// 文件中的其他块（比如证书）会被跳过
func LoadPrivateKey(fs afero.Fs, path string) (crypto.Signer, error) {
	data, err := afero.ReadFile(fs, filepath.Clean(path))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "LoadPrivateKey.ReadFile")
	}

	for {
		block, rest := pem.Decode(data)
		if block == nil {
			return nil, errNoPrivateKey
		}
		data = rest

		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, pkgerrors.Wrap(err, "LoadPrivateKey.ParsePKCS1")
			}
			return key, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, pkgerrors.Wrap(err, "LoadPrivateKey.ParsePKCS8")
			}
			rsaKey, ok := key.(*rsa.PrivateKey)
			if !ok {
				return nil, errNotRSAKey
			}
			return rsaKey, nil
		}
	}
}

// SelfSigned 为key生成一张自签名的服务端证书，返回DER编码
func SelfSigned(key crypto.Signer, commonName string, lifetime time.Duration) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return nil, err
	}
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		DNSNames:              []string{commonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(lifetime),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "SelfSigned.CreateCertificate")
	}
	return der, nil
}
