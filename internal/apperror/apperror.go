// Package apperror описывает типизированные бизнес-ошибки сервиса и их машиночитаемые коды.
package apperror

import (
	"errors"
	"net/http"
)

// Code задаёт стабильный машиночитаемый код ошибки, возвращаемый клиенту.
type Code string

const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeInsufficientStock      Code = "INSUFFICIENT_STOCK"
	CodeInsufficientFunds      Code = "INSUFFICIENT_FUNDS"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeUnauthorized           Code = "UNAUTHORIZED"
	CodeInvalidSignature       Code = "INVALID_SIGNATURE"
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeEmptyCart              Code = "EMPTY_CART"
	CodeConflict               Code = "CONFLICT"
	CodeInternal               Code = "INTERNAL_ERROR"
)

var httpStatusByCode = map[Code]int{
	CodeNotFound:               http.StatusNotFound,
	CodeInsufficientStock:      http.StatusConflict,
	CodeInsufficientFunds:      http.StatusConflict,
	CodeInvalidStateTransition: http.StatusUnprocessableEntity,
	CodeUnauthorized:           http.StatusForbidden,
	CodeInvalidSignature:       http.StatusBadRequest,
	CodeValidation:             http.StatusBadRequest,
	CodeEmptyCart:              http.StatusUnprocessableEntity,
	CodeConflict:               http.StatusConflict,
	CodeInternal:               http.StatusInternalServerError,
}

// Базовые ошибки таксономии. Конкретные ошибки оборачивают их через New/Wrap
// и по-прежнему совпадают с ними через errors.Is.
var (
	ErrNotFound               = New(CodeNotFound, "resource not found")
	ErrInsufficientStock      = New(CodeInsufficientStock, "insufficient stock")
	ErrInsufficientFunds      = New(CodeInsufficientFunds, "insufficient funds")
	ErrInvalidStateTransition = New(CodeInvalidStateTransition, "invalid state transition")
	ErrUnauthorized           = New(CodeUnauthorized, "access denied")
	ErrInvalidSignature       = New(CodeInvalidSignature, "invalid signature")
	ErrValidation             = New(CodeValidation, "validation failed")
	ErrEmptyCart              = New(CodeEmptyCart, "cart is empty")
	ErrConflict               = New(CodeConflict, "conflict")
)

// Error описывает бизнес-ошибку с кодом и необязательной причиной.
type Error struct {
	code    Code
	message string
	cause   error
}

// New создаёт ошибку с указанным кодом.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap создаёт ошибку с указанным кодом, сохраняя исходную причину.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Code возвращает код ошибки.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

// Message возвращает публичное сообщение ошибки.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is сравнивает ошибки по коду, чтобы конкретные ошибки совпадали с базовыми.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.code == t.code
}

// CodeOf возвращает код первой типизированной ошибки в цепочке или CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return CodeInternal
}

// HTTPStatus возвращает HTTP-статус для кода ошибки.
func HTTPStatus(code Code) int {
	if status, ok := httpStatusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NotFound создаёт ошибку отсутствия ресурса с уточняющим сообщением.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// Validation создаёт ошибку валидации с уточняющим сообщением.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}
