package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yly97/tlsfront/pkg/layer"
)

func TestAlertFor(t *testing.T) {
	assert.Nil(t, AlertFor(nil))
	cases := map[error]layer.Description{
		ErrBadPadding:              layer.BadRecordMac,
		ErrAuthenticationFailed:    layer.BadRecordMac,
		ErrInvalidKeyExchangeValue: layer.IllegalParameter,
		ErrDerivationPrecondition:  layer.InternalError,
		errRecordOverflow:          layer.RecordOverflow,
		errInvalidHandshake:        layer.DecodeError,
	}
	for err, desc := range cases {
		alert := AlertFor(err)
		assert.Equal(t, layer.Fatal, alert.Level, err.Error())
		assert.Equal(t, desc, alert.Description, err.Error())
	}
}

func TestAlertError(t *testing.T) {
	assert.Nil(t, WrapAlertError(nil))

	err := WrapAlertError(ErrBadPadding)
	assert.Equal(t, "Alert Fatal BadRecordMac", err.Error())
	assert.ErrorIs(t, err, ErrBadPadding)
	assert.Equal(t, layer.BadRecordMac, err.Alert().Description)

	var alertErr *AlertError
	assert.True(t, errors.As(error(WrapAlertError(ErrAuthenticationFailed)), &alertErr))
	// 两种完整性错误在线上看起来一样
	assert.Equal(t, WrapAlertError(ErrAuthenticationFailed).Error(), err.Error())
}
