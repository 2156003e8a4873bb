package errors

import "github.com/pkg/errors"

var (
	// orchestrator validation errors, rejected before any network activity
	ErrNoValidSenders   = errors.New("no valid sender accounts")
	ErrNoValidReceivers = errors.New("no valid receiver accounts")
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateName     = errors.New("template name is required")

	// account registry errors
	ErrAccountExists   = errors.New("account already registered")
	ErrAccountNotFound = errors.New("account not found")

	// monitor errors
	ErrIdleNotSupported = errors.New("account does not support idle watch")
	ErrMonitorStopped   = errors.New("monitor is stopped")

	// dispatch errors
	ErrQueueClosed = errors.New("dispatch queue is closed")

	// credential errors
	ErrCredentialNotFound = errors.New("credential not found")
)

// ConnectErrorKind classifies why a protocol connection could not be
// established.
type ConnectErrorKind string

const (
	ConnectErrorAuth     ConnectErrorKind = "auth"
	ConnectErrorNetwork  ConnectErrorKind = "network"
	ConnectErrorProtocol ConnectErrorKind = "protocol"
)

type ConnectError struct {
	Kind ConnectErrorKind
	Err  error
}

func (e *ConnectError) Error() string {
	return string(e.Kind) + " error: " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func NewAuthError(err error) *ConnectError {
	return &ConnectError{Kind: ConnectErrorAuth, Err: err}
}

func NewNetworkError(err error) *ConnectError {
	return &ConnectError{Kind: ConnectErrorNetwork, Err: err}
}

func NewProtocolError(err error) *ConnectError {
	return &ConnectError{Kind: ConnectErrorProtocol, Err: err}
}

// PermanentError marks a failure that retrying cannot fix, independent of
// transport state. Malformed messages and invalid addresses fall here.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether a send failure should be dead-lettered without
// retry. Auth rejections, protocol errors and validation failures never heal
// on their own; network errors and timeouts are retried.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	if errors.As(err, &permErr) {
		return true
	}
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return connErr.Kind != ConnectErrorNetwork
	}
	return false
}
