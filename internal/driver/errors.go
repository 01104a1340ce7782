package driver

import "errors"

var (
	// ErrTransport covers connection failures and non 2xx bridge replies.
	ErrTransport = errors.New("transport error")
	// ErrParse covers undecodable bridge payloads.
	ErrParse = errors.New("parse error")
	// ErrProtocolMismatch is returned for state ids that are not commands.
	ErrProtocolMismatch = errors.New("protocol mismatch")
)
