// Package apperr classifies the failures the service reports so the REST
// and MCP surfaces answer them the same way. Callers wrap a sentinel with
// fmt.Errorf and %w; HTTPStatus maps the wrapped chain back to a status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("checksum mismatch")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrTooLarge marks markup over the configured size cap.
	ErrTooLarge = fmt.Errorf("too large: %w", ErrInvalidInput)
	// ErrUnprocessable marks markup that parses badly or whose media tags
	// cannot be reconciled with the note resources.
	ErrUnprocessable = fmt.Errorf("unprocessable note: %w", ErrInvalidInput)
)

// HTTPStatus returns the response status for err. The second result is
// false for errors outside the classified set, which callers log and
// report as 500.
func HTTPStatus(err error) (int, bool) {
	switch {
	case err == nil:
		return http.StatusOK, true
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict, true
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, true
	case errors.Is(err, ErrUnprocessable):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, true
	}
	return http.StatusInternalServerError, false
}
