package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quoteajob/quoteajob/internal/apperr"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := apperr.NotFound("job %s not found", "abc")
	wrapped := fmt.Errorf("loading job: %w", err)

	assert.True(t, errors.Is(wrapped, apperr.ErrNotFound))
	assert.False(t, errors.Is(wrapped, apperr.ErrConflict))
	assert.Equal(t, "job abc not found", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("x"), http.StatusNotFound},
		{apperr.Conflict("x"), http.StatusConflict},
		{apperr.PermissionDenied("x"), http.StatusForbidden},
		{apperr.InvalidInput("x"), http.StatusBadRequest},
		{apperr.Unauthenticated("x"), http.StatusUnauthorized},
		{apperr.Invariant("x"), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, apperr.HTTPStatus(c.err), c.err.Error())
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "Failed", apperr.PublicMessage(apperr.Invariant("average is zero"), "Failed"))
	assert.Equal(t, "Failed", apperr.PublicMessage(errors.New("mongo down"), "Failed"))
	assert.Equal(t, "Job not found", apperr.PublicMessage(apperr.NotFound("Job not found"), "Failed"))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := apperr.Wrap(apperr.KindConflict, cause, "quote already exists")
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}
