package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrorKind classifies failures raised while handling a turn.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindInvalidState  ErrorKind = "invalid_state"
	KindRouting       ErrorKind = "routing"
	KindExternal      ErrorKind = "external"
	KindPriceMismatch ErrorKind = "price_mismatch"
)

// Sentinels for errors.Is checks against any error of the matching kind.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrInvalidState  = &Error{Kind: KindInvalidState}
	ErrRouting       = &Error{Kind: KindRouting}
	ErrExternal      = &Error{Kind: KindExternal}
	ErrPriceMismatch = &Error{Kind: KindPriceMismatch}
)

// Error is a classified domain failure.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so sentinels match any error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Validation returns a ValidationError for a malformed request.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a NotFoundError for a missing order line or menu item.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// InvalidState returns an InvalidStateError.
func InvalidState(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Routing returns a RoutingError, optionally wrapping a cause.
func Routing(op string, cause error, format string, args ...any) error {
	return &Error{Kind: KindRouting, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}

// ExternalError reports a failed or timed-out collaborator call.
type ExternalError struct {
	Service string
	Err     error
}

// External wraps err as a failure of the named collaborator.
func External(service string, err error) error {
	return &ExternalError{Service: service, Err: err}
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: external service failed: %v", e.Service, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

func (e *ExternalError) Is(target error) bool { return target == ErrExternal }

// PriceChange describes one order line whose snapshot disagrees with the
// authoritative store.
type PriceChange struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	OldPrice  decimal.Decimal `json:"oldPrice"`
	NewPrice  decimal.Decimal `json:"newPrice"`
	Available bool            `json:"available"`
}

// PriceMismatchError is raised at confirmation when snapshot prices are stale.
type PriceMismatchError struct {
	Changes []PriceChange
}

func (e *PriceMismatchError) Error() string {
	parts := make([]string, 0, len(e.Changes))
	for _, c := range e.Changes {
		if !c.Available {
			parts = append(parts, c.ItemID+" unavailable")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s->%s", c.ItemID, c.OldPrice.StringFixed(2), c.NewPrice.StringFixed(2)))
	}
	return "price mismatch: " + strings.Join(parts, ", ")
}

func (e *PriceMismatchError) Is(target error) bool { return target == ErrPriceMismatch }

// KindOf classifies err, returning "" for unclassified errors.
func KindOf(err error) ErrorKind {
	var de *Error
	var ee *ExternalError
	var pe *PriceMismatchError
	switch {
	case errors.As(err, &pe):
		return KindPriceMismatch
	case errors.As(err, &ee):
		return KindExternal
	case errors.As(err, &de):
		return de.Kind
	default:
		return ""
	}
}

// Recoverable reports whether the user can continue the conversation after err.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindExternal, KindPriceMismatch:
		return true
	default:
		return false
	}
}
