package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	apperrors "parkflow/internal/errors"

	"github.com/stretchr/testify/assert"
)

func TestBackend_MarksByStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   error
		code   int
		name   string
	}{
		{http.StatusNotFound, apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
		{http.StatusConflict, apperrors.ErrConflict, http.StatusConflict, "conflict"},
		{http.StatusForbidden, apperrors.ErrAuthRequired, http.StatusUnauthorized, "auth_required"},
		{http.StatusUnprocessableEntity, apperrors.ErrValidation, http.StatusBadRequest, "validation"},
		{http.StatusServiceUnavailable, apperrors.ErrBackend, http.StatusBadGateway, "backend"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			err := apperrors.Backend(tc.status, "")
			assert.True(t, apperrors.Is(err, tc.kind))
			assert.True(t, apperrors.Is(err, apperrors.ErrBackend))
			assert.Equal(t, tc.code, apperrors.StatusCode(err))
			assert.Equal(t, tc.name, apperrors.KindOf(err))
		})
	}
}

func TestUserMessage_DropsWrapping(t *testing.T) {
	err := apperrors.Wrap(apperrors.Backend(http.StatusConflict, "Spot already booked"), "create reservation")
	assert.Equal(t, "Spot already booked", apperrors.UserMessage(err))

	err = apperrors.Wrapf(apperrors.New(apperrors.ErrValidation, "choose a vehicle type"), "stage %d", 1)
	assert.Equal(t, "choose a vehicle type", apperrors.UserMessage(err))
	assert.Equal(t, "", apperrors.UserMessage(nil))
}

func TestHTTPError(t *testing.T) {
	err := apperrors.ErrBadRequest("invalid request body")
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusCode(err))
	assert.Equal(t, "validation", apperrors.KindOf(err))
	assert.Equal(t, "invalid request body", apperrors.UserMessage(err))

	assert.Equal(t, "internal", apperrors.KindOf(fmt.Errorf("boom")))
	assert.Equal(t, http.StatusInternalServerError, apperrors.StatusCode(fmt.Errorf("boom")))
}
