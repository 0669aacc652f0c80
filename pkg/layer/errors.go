package layer

import "errors"

var (
	errBufferTooSmall            = errors.New("buffer too small")
	errUnsupportedVersion        = errors.New("unsuported protocol version")
	errInvalidContentType        = errors.New("invalid content type")
	errInvalidHandshakeType      = errors.New("invalid handshake type")
	errLengthMismatch            = errors.New("length mismatch")
	errRecordTooLarge            = errors.New("record length exceeds maximum")
	errInvalidCompressionMethod  = errors.New("invalid compression method")
	errHandshakeMessageUnset     = errors.New("handshake message unset")
	errInvalidChangeCipherSpec   = errors.New("invalid change cipher spec")
	errInvalidKeyExchange        = errors.New("invalid key exchange message")
	errInvalidSignatureAlgorithm = errors.New("invalid signature algorithm")
)
