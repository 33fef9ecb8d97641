package domainerrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	base := New(CodeNotFound, "passport missing")
	assert.True(t, HasCode(base, CodeNotFound))
	assert.False(t, HasCode(base, CodeForbidden))

	wrapped := Wrap(base, CodeInternal, "lookup failed")
	assert.True(t, HasCode(wrapped, CodeInternal))
	assert.True(t, HasCode(wrapped, CodeNotFound), "wrapped cause code should remain visible")

	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestToHTTPStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeBadRequest, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeForbidden, http.StatusForbidden},
		{CodeVersionConflict, http.StatusConflict},
		{CodeAlreadySubmitted, http.StatusConflict},
		{CodeExpired, http.StatusGone},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ToHTTPStatus(New(tc.code, "x")), string(tc.code))
	}
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(errors.New("plain")))
}
