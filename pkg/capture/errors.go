package capture

import "errors"

var (
	errInvalidPacket       = errors.New("invalid packet")
	errUnsupportedLinkType = errors.New("unsupported link type")
	errTooManySegments     = errors.New("too many out-of-order segments")
	errInvalidKeyLog       = errors.New("invalid key log line")
)
