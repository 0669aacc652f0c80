package loopback

import (
	"errors"

	"github.com/yly97/tlsfront/pkg/session"
)

type flightVal uint8

const (
	flight1 flightVal = iota + 1
	flight2
	flight3
	flight4
	flight5
	flightDone
)

func (f flightVal) String() string {
	switch f {
	case flight1:
		return "Flight 1"
	case flight2:
		return "Flight 2"
	case flight3:
		return "Flight 3"
	case flight4:
		return "Flight 4"
	case flight5:
		return "Flight 5"
	case flightDone:
		return "Done"
	default:
		return "Invalid Flight"
	}
}

// sender 奇数flight由client处理，偶数flight由server处理
func (f flightVal) sender() session.Role {
	if f&1 == 1 {
		return session.RoleClient
	}
	return session.RoleServer
}

func (f flightVal) getFlightHandler() (flightHandler, error) {
	switch f {
	case flight1:
		return flight1Handle, nil
	case flight2:
		return flight2Handle, nil
	case flight3:
		return flight3Handle, nil
	case flight4:
		return flight4Handle, nil
	case flight5:
		return flight5Handle, nil
	default:
		return nil, errors.New("Invalid Flight")
	}
}
