package services

import (
	"context"
	"errors"
	"fmt"

	"agrimarket/db"
)

// Виды ошибок сервисов. В HTTP-коды их переводит только слой handlers.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrUpload         = errors.New("attachment upload failed")
	ErrPersistence    = errors.New("storage failure")
	ErrUnknownOutcome = errors.New("outcome unknown")
	ErrAuth           = errors.New("invalid credentials")
	ErrForbidden      = errors.New("forbidden")
)

// ValidationError описывает некорректное поле запроса.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func conflict(msg string) error {
	return fmt.Errorf("%w: %s", ErrConflict, msg)
}

// storeErr классифицирует ошибку хранилища. Для записи истёкший таймаут
// означает неизвестный результат: строка могла и сохраниться.
func storeErr(op string, err error, write bool) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, db.ErrConflict):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case write && errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrUnknownOutcome, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}
}
