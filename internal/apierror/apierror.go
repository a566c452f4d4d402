// Package apierror defines the error taxonomy shared by the domain packages,
// the HTTP handlers and the API client. Every error that crosses the wire is
// an *Error so a caller can branch on its Kind without string matching.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	KindInvalidQuantity   Kind = "InvalidQuantity"
	KindInsufficientStock Kind = "InsufficientStock"
	KindEmptyCart         Kind = "EmptyCart"
	KindOrdersDisabled    Kind = "OrdersDisabled"
	KindDuplicateName     Kind = "DuplicateName"
	KindInvalidName       Kind = "InvalidName"
	KindInvalidTransition Kind = "InvalidTransition"
	KindHasPendingOrders  Kind = "HasPendingOrders"
	KindReasonRequired    Kind = "ReasonRequired"
	KindNotFound          Kind = "NotFound"
	KindUnauthorized      Kind = "Unauthorized"
	KindNetworkFailure    Kind = "NetworkFailure"
	KindInvalidInput      Kind = "InvalidInput"
	KindInternal          Kind = "Internal"
)

// Error is the canonical domain error.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches sentinels by kind. A target carrying a message only matches an
// identical message, so errors.Is(err, ErrNotFound) works for any NotFound.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Sentinels for errors.Is.
var (
	ErrInvalidQuantity   = &Error{Kind: KindInvalidQuantity}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrEmptyCart         = &Error{Kind: KindEmptyCart}
	ErrOrdersDisabled    = &Error{Kind: KindOrdersDisabled}
	ErrDuplicateName     = &Error{Kind: KindDuplicateName}
	ErrInvalidName       = &Error{Kind: KindInvalidName}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrHasPendingOrders  = &Error{Kind: KindHasPendingOrders}
	ErrReasonRequired    = &Error{Kind: KindReasonRequired}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrNetworkFailure    = &Error{Kind: KindNetworkFailure}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrInternal          = &Error{Kind: KindInternal}
)

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to the status code the API answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidQuantity, KindEmptyCart, KindInvalidName,
		KindReasonRequired, KindInvalidInput, KindDuplicateName:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInsufficientStock, KindOrdersDisabled, KindInvalidTransition,
		KindHasPendingOrders:
		return http.StatusConflict
	case KindNetworkFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Response is the JSON envelope for every 4xx/5xx answer.
type Response struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind,omitempty"`
}

// ToResponse builds the envelope for err. Internal errors never leak details.
func ToResponse(err error) (int, Response) {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return http.StatusInternalServerError, Response{Error: "internal server error", Kind: KindInternal}
	}
	return HTTPStatus(e.Kind), Response{Error: e.Error(), Kind: e.Kind}
}
