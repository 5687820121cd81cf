package mqtt

import "errors"

// ErrAckTimeout is returned when no downstream consumer acknowledges a
// published run before the deadline.
var ErrAckTimeout = errors.New("timeout waiting for ack")
