package errors

import (
	"errors"
)

var (
	ErrFailedToReadConfig  = errors.New("failed to read config file")
	ErrFailedToParseConfig = errors.New("failed to parse config file")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrDuplicateRegister   = errors.New("duplicate endpoint register")
	ErrDuplicateName       = errors.New("duplicate endpoint or action name")
	ErrPreconditionUnknown = errors.New("precondition references unknown action")
	ErrUnknownSeparator    = errors.New("unknown event separation method")

	ErrBindFailed         = errors.New("failed to bind broadcast listener")
	ErrFrameMalformed     = errors.New("malformed wire frame")
	ErrFrameTooLarge      = errors.New("wire frame exceeds maximum size")
	ErrConnectionLost     = errors.New("connection to server lost")
	ErrClientSendFailed   = errors.New("failed to send to client")

	ErrUnknownRegister      = errors.New("unknown endpoint register")
	ErrEndpointLaunchFailed = errors.New("failed to launch endpoint")
	ErrEndpointNotActive    = errors.New("endpoint is not active")
	ErrFailedToCreatePipe   = errors.New("failed to create pipe")
	ErrFailedToTerminate    = errors.New("failed to terminate process group")

	ErrInvalidWatchRegex = errors.New("invalid watch regex pattern")
	ErrWatchNotFound     = errors.New("watch register not in use")
	ErrRegisterInUse     = errors.New("watch register already in use")
	ErrNoFreeRegister     = errors.New("no free watch register available")

	ErrManagerStopped = errors.New("action manager already stopped")
)

var (
	As  = errors.As
	Is  = errors.Is
	New = errors.New
)
