package loopback

import "errors"

var (
	errUnexpectedType    = errors.New("unexpected type")
	errMissingMessage    = errors.New("missing handshake message")
	errUnsupportedSuite  = errors.New("no supported cipher suite offered")
	errUnexpectedSuite   = errors.New("server selected unexpected cipher suite")
	errNotRSAKey         = errors.New("server key is not RSA")
	errPeerAlert         = errors.New("peer sent alert")
	errReplyMismatch     = errors.New("echoed application data mismatch")
	errUnexpectedRecord  = errors.New("unexpected record")
	errTrailingHandshake = errors.New("handshake messages left unprocessed")
)
