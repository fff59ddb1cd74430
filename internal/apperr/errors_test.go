package apperr

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err   error
		want  int
		known bool
	}{
		{nil, http.StatusOK, true},
		{fmt.Errorf("vault: a.enml: %w", ErrNotFound), http.StatusNotFound, true},
		{ErrConflict, http.StatusConflict, true},
		{ErrAlreadyExists, http.StatusConflict, true},
		{fmt.Errorf("content exceeds 10 bytes: %w", ErrTooLarge), http.StatusRequestEntityTooLarge, true},
		{fmt.Errorf("%w: %w", ErrUnprocessable, io.ErrUnexpectedEOF), http.StatusUnprocessableEntity, true},
		{ErrInvalidInput, http.StatusBadRequest, true},
		{io.ErrClosedPipe, http.StatusInternalServerError, false},
	}
	for _, c := range cases {
		got, known := HTTPStatus(c.err)
		if got != c.want || known != c.known {
			t.Errorf("HTTPStatus(%v) = %d, %v; want %d, %v", c.err, got, known, c.want, c.known)
		}
	}
}

func TestRefinedErrorsAreInvalidInput(t *testing.T) {
	for _, err := range []error{ErrTooLarge, ErrUnprocessable} {
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%v does not wrap ErrInvalidInput", err)
		}
	}
}
