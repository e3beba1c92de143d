package procedure

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/UkralStul/starter-repo/internal/storage"
)

// Code классифицирует ошибки процедур.
type Code string

const (
	// CodeValidation - вход не соответствует контракту процедуры.
	CodeValidation Code = "VALIDATION"
	// CodeUnauthorized - процедура требует личность, а вызывающий анонимен.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeNotFound - запрошенная сущность отсутствует.
	CodeNotFound Code = "NOT_FOUND"
	// CodeStorage - хранилище недоступно или отклонило запись.
	CodeStorage Code = "STORAGE"
)

// Error - структурированная ошибка процедуры.
type Error struct {
	Code    Code
	Message string
	// Path - процедура, в которой возникла ошибка.
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (procedure=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus возвращает HTTP-статус для сетевого транспорта.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Invalid создает ошибку валидации.
func Invalid(msg string, err error) *Error {
	return &Error{Code: CodeValidation, Message: msg, Err: err}
}

// Unauthorized создает ошибку авторизации.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// NotFound создает ошибку отсутствующей сущности.
func NotFound(msg string, err error) *Error {
	return &Error{Code: CodeNotFound, Message: msg, Err: err}
}

// FromStorage переводит ошибку хранилища в ошибку процедуры.
// Уже структурированные ошибки возвращаются как есть.
func FromStorage(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, storage.ErrNotFound) {
		return NotFound("entity not found", err)
	}
	if errors.Is(err, storage.ErrConflict) {
		return Invalid("entity already exists", err)
	}
	return &Error{Code: CodeStorage, Message: "storage failure", Err: err}
}

// CodeOf возвращает код ошибки; пустой код для nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return FromStorage(err).Code
}
