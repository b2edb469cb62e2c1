// Package apperr classifies failures crossing the session and content boundaries.
package apperr

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAssetUpload
	KindPermission
	KindNetwork
	KindConflict
	KindNotFound
	KindInvalidCredentials
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAssetUpload:
		return "asset_upload"
	case KindPermission:
		return "permission"
	case KindNetwork:
		return "network"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidCredentials:
		return "invalid_credentials"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ErrNoSession is returned (wrapped) by identity services when there is no
// current session to resolve.
var ErrNoSession = stderrors.New("no active session")

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error with a fresh message and stack.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap classifies err under kind, attaching a stack if err has none.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WithStack(err)}
}

// Classify returns err as an *Error. Already classified errors keep their
// kind; transport failures become KindNetwork; anything else is KindUnknown.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var ae *Error
	if stderrors.As(err, &ae) {
		if ae.Op == op {
			return ae
		}
		return &Error{Kind: ae.Kind, Op: op, Err: err}
	}

	var netErr net.Error
	switch {
	case stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, context.Canceled),
		stderrors.As(err, &netErr):
		return Wrap(KindNetwork, op, err)
	case stderrors.Is(err, ErrNoSession):
		return Wrap(KindInvalidCredentials, op, err)
	}

	return Wrap(KindUnknown, op, err)
}

// KindOf reports the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if stderrors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAssetUpload:
		return http.StatusBadGateway
	case KindPermission:
		return http.StatusForbidden
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindNetwork:
		return http.StatusServiceUnavailable
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
