package ipcon

import (
	"errors"

	"github.com/tfp-protocol/tfp-go/pkg/transport"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// Transport errors.
var (
	ErrHostUnresolvable   = transport.ErrHostUnresolvable
	ErrSocketCreateFailed = transport.ErrSocketCreateFailed
	ErrConnectRefused     = transport.ErrConnectRefused
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyConnected   = errors.New("already connected")
)

// Protocol errors.
var (
	ErrTimeout             = errors.New("request timed out")
	ErrWrongResponseLength = errors.New("wrong response length")
	ErrUnknownErrorCode    = wire.ErrUnknownErrorCode
)

// Errors reported by the remote device.
var (
	ErrInvalidParameter = wire.ErrInvalidParameter
	ErrNotSupported     = wire.ErrNotSupported
)

// Device state errors.
var (
	ErrInvalidUID        = wire.ErrInvalidUID
	ErrWrongDeviceType   = errors.New("wrong device type")
	ErrDeviceReplaced    = errors.New("device replaced by a newer handle with the same UID")
	ErrDeviceReleased    = errors.New("device released")
	ErrInvalidFunctionID = errors.New("invalid function ID")
	ErrWorkerStartFailed = errors.New("callback worker could not be started")
)
