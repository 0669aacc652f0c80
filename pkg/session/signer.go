// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package session

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"io"
	"time"

	"github.com/pion/dtls/v2/pkg/crypto/hash"
	"github.com/pion/dtls/v2/pkg/crypto/signature"
	"github.com/pion/dtls/v2/pkg/crypto/signaturehash"
)

// Signature 带算法标识的签名
type Signature struct {
	Algorithm signaturehash.Algorithm
	Bytes     []byte
}

// Sign 用RSA PKCS#1 v1.5 + SHA-256对data签名，算法标识0x0401
func Sign(rand io.Reader, key crypto.Signer, data []byte) (*Signature, error) {
	return sign(rand, key, data, DefaultSuite.Signature)
}

func sign(rand io.Reader, key crypto.Signer, data []byte, alg signaturehash.Algorithm) (*Signature, error) {
	if alg.Signature != signature.RSA {
		return nil, errUnsupportSignAlgorithm
	}
	if _, ok := key.Public().(*rsa.PublicKey); !ok {
		return nil, errNotRSAKey
	}
	if !supportedHash(alg.Hash) {
		return nil, errUnsupportSignAlgorithm
	}

	digest := alg.Hash.Digest(data)
	sig, err := key.Sign(rand, digest, alg.Hash.CryptoHash())
	if err != nil {
		return nil, err
	}
	return &Signature{Algorithm: alg, Bytes: sig}, nil
}

func supportedHash(h hash.Algorithm) bool {
	switch h {
	case hash.SHA1, hash.SHA224, hash.SHA256, hash.SHA384, hash.SHA512:
		return true
	}
	return false
}

// VerifySignature 客户端校验ServerKeyExchange的签名
func VerifySignature(pub crypto.PublicKey, data []byte, sig *Signature) error {
	if sig == nil {
		return errSignatureMismatch
	}
	if !supportedHash(sig.Algorithm.Hash) {
		return errUnsupportSignAlgorithm
	}

	switch p := pub.(type) {
	case *rsa.PublicKey:
		if sig.Algorithm.Signature != signature.RSA {
			return errUnsupportSignAlgorithm
		}
		digest := sig.Algorithm.Hash.Digest(data)
		if err := rsa.VerifyPKCS1v15(p, sig.Algorithm.Hash.CryptoHash(), digest, sig.Bytes); err != nil {
			return errSignatureMismatch
		}
		return nil
	}

	return errUnsupportSignAlgorithm
}

// loadCertificates 将byte切片表示的certificates转换为x509.Certificate对象切片
func loadCertificates(rawCertificates [][]byte) ([]*x509.Certificate, error) {
	if len(rawCertificates) == 0 {
		return nil, errNoCertificate
	}

	certs := make([]*x509.Certificate, 0, len(rawCertificates))
	for _, rawCert := range rawCertificates {
		cert, err := x509.ParseCertificate(rawCert)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// verifyServerCert 传入服务端证书链以及根证书，验证服务端证书并返回完整的证书链
func verifyServerCert(certs []*x509.Certificate, roots *x509.CertPool) (chains [][]*x509.Certificate, err error) {
	intermediateCAPool := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediateCAPool.AddCert(cert)
	}
	opts := x509.VerifyOptions{
		Roots:         roots,
		CurrentTime:   time.Now(),
		Intermediates: intermediateCAPool,
	}
	return certs[0].Verify(opts)
}
