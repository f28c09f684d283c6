package game

import "errors"

var (
	ErrClientNotRegistered = errors.New("client not registered")
	ErrInsufficientFunds   = errors.New("not enough points to buy trials")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrAlreadyRegistered   = errors.New("client already registered")

	// handle delivery
	ErrHandleClosed   = errors.New("client handle closed")
	ErrSendBufferFull = errors.New("client send buffer full")
)

// errorCode maps a server error to the code sent to websocket clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrClientNotRegistered):
		return "not_registered"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	default:
		return "internal"
	}
}
