// Package errs defines the node's closed error-kind taxonomy: a typed
// Kind plus a single wrapping struct carrying a chain of lower-level
// causes. Callers branch on Kind at the consensus and RPC boundaries;
// the core layers only compose.
package errs

import "fmt"

// Kind is the closed set of error categories a node operation may fail
// with. Callers branch on Kind, never on Error() text.
type Kind string

const (
	IO                  Kind = "IO"
	DBIntegrity         Kind = "DBIntegrity"
	InvalidSpec         Kind = "InvalidSpec"
	InvalidTxCall       Kind = "InvalidTxCall"
	InvalidTxs          Kind = "InvalidTxs"
	InvalidParams       Kind = "InvalidParams"
	Crypto              Kind = "Crypto"
	InvalidSecretKey    Kind = "InvalidSecretKey"
	InvalidPublicKey    Kind = "InvalidPublicKey"
	VerificationFailed  Kind = "VerificationFailed"
	InvalidKeyLength     Kind = "InvalidKeyLength"
	InvalidAddressLength Kind = "InvalidAddressLength"
	Config              Kind = "Config"
	HomeDirNotInited    Kind = "HomeDirNotInited"
	NotReleasedProperly Kind = "NotReleasedProperly"
)

// Error wraps one Kind with a message and an optional cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error carrying cause, for propagating a lower-level
// failure (e.g. a storage or codec error) under a node-level Kind.
func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Is reports whether err (or any error it wraps) carries kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		break
	}
	return false
}
