package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicHidesInternalCause(t *testing.T) {
	err := Wrap(CodeInternal, errors.New("pq: connection refused"), "insert order")

	status, code, msg, details := Public(err)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, code)
	assert.Equal(t, "internal server error", msg)
	assert.Nil(t, details)
}

func TestPublicExposesDomainMessage(t *testing.T) {
	err := fmt.Errorf("initiate: %w", New(CodeStateConflict, "Order is not pending payment"))

	status, code, msg, _ := Public(err)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeStateConflict, code)
	assert.Equal(t, "Order is not pending payment", msg)
}

func TestPublicUntypedError(t *testing.T) {
	status, code, _, _ := Public(errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, code)
}

func TestValidationDetails(t *testing.T) {
	err := New(CodeValidation, "validation failed").WithDetails([]string{"items"})

	status, _, _, details := Public(err)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []string{"items"}, details)
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("x")))
}

func TestMetadataForUnknownCode(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor(Code("nope")).HTTPStatus)
	assert.Equal(t, http.StatusTooManyRequests, MetadataFor(CodeRateLimit).HTTPStatus)
}
