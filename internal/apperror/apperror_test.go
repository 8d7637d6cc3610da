package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByCode(t *testing.T) {
	err := New(CodeInsufficientStock, "not enough stock for product 7")

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrInsufficientFunds)
}

func TestCodeOf_WrappedChain(t *testing.T) {
	err := fmt.Errorf("checkout: %w", NotFound("cart not found"))

	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeInternal, CodeOf(nil))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("driver failure")
	err := Wrap(CodeConflict, cause, "duplicate")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "duplicate: driver failure", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeInsufficientFunds, http.StatusConflict},
		{CodeInvalidStateTransition, http.StatusUnprocessableEntity},
		{CodeUnauthorized, http.StatusForbidden},
		{CodeInvalidSignature, http.StatusBadRequest},
		{Code("UNKNOWN"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}
