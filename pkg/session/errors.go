package session

import (
	"errors"
	"fmt"

	"github.com/yly97/tlsfront/pkg/kex"
	"github.com/yly97/tlsfront/pkg/layer"
)

var (
	ErrInvalidKeyExchangeValue = kex.ErrInvalidKeyExchangeValue
	ErrBadPadding              = errors.New("bad record padding")
	ErrAuthenticationFailed    = errors.New("authentication failed")
	ErrDerivationPrecondition  = errors.New("derivation precondition not met")
)

var (
	errSequenceNumberOverflow = errors.New("sequence number overflow")
	errRandomAlreadySet       = errors.New("random already set")
	errInvalidRandom          = errors.New("invalid random length")
	errKeyExchangeAlreadySet  = errors.New("local key exchange value already generated")
	errKeysAlreadyDerived     = errors.New("keys already derived")
	errRecordOverflow         = errors.New("record overflow")
	errInvalidRecord          = errors.New("invalid protected record")
	errUnsupportSignAlgorithm = errors.New("unsupport signature algorithm")
	errSignatureMismatch      = errors.New("signature mis match")
	errNoCertificate          = errors.New("no certificate found")
	errBadCertificate         = errors.New("bad certificate")
	errNotRSAKey              = errors.New("private key is not RSA")
	errStateClosed            = errors.New("state closed")
	errInvalidHandshake       = errors.New("invalid handshake message framing")
)

// AlertFor 出错时应当发给对端的Alert。填充错误和MAC错误在线上不做区分
func AlertFor(err error) *layer.Alert {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrBadPadding), errors.Is(err, ErrAuthenticationFailed):
		return &layer.Alert{Level: layer.Fatal, Description: layer.BadRecordMac}
	case errors.Is(err, ErrInvalidKeyExchangeValue):
		return &layer.Alert{Level: layer.Fatal, Description: layer.IllegalParameter}
	case errors.Is(err, errRecordOverflow):
		return &layer.Alert{Level: layer.Fatal, Description: layer.RecordOverflow}
	case errors.Is(err, errBadCertificate), errors.Is(err, errNoCertificate):
		return &layer.Alert{Level: layer.Fatal, Description: layer.BadCertificate}
	case errors.Is(err, errInvalidHandshake):
		return &layer.Alert{Level: layer.Fatal, Description: layer.DecodeError}
	case errors.Is(err, errSignatureMismatch):
		return &layer.Alert{Level: layer.Fatal, Description: layer.DecryptError}
	default:
		return &layer.Alert{Level: layer.Fatal, Description: layer.InternalError}
	}
}

type AlertError struct {
	alert *layer.Alert
	msg   string
	err   error
}

// WrapAlertError 用err对应的Alert包装err
func WrapAlertError(err error) *AlertError {
	alert := AlertFor(err)
	if alert == nil {
		return nil
	}
	return &AlertError{
		alert: alert,
		msg:   fmt.Sprintf("Alert %s %s", alert.Level, alert.Description),
		err:   err,
	}
}

func (e *AlertError) Error() string {
	return e.msg
}

func (e *AlertError) Unwrap() error {
	return e.err
}

func (e *AlertError) Alert() *layer.Alert {
	return e.alert
}
