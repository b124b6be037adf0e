package rpc

import "errors"

var (
	errUnknownRegion = errors.New("rpc: unknown region")
	errOutOfBounds   = errors.New("rpc: offset/length out of bounds")
)
