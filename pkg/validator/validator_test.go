package validator

import (
	"testing"

	"go-marketplace-pos/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    uuid.UUID `validate:"uuid_required"`
	Phone string    `validate:"omitempty,msisdn"`
	Qty   int       `validate:"gt=0"`
}

func TestValidateStruct(t *testing.T) {
	errs := ValidateStruct(&sample{Qty: 0, Phone: "12345"})
	require.Len(t, errs, 3)

	tags := map[string]string{}
	for _, e := range errs {
		tags[e.FailedField] = e.Tag
	}
	assert.Equal(t, "uuid_required", tags["sample.ID"])
	assert.Equal(t, "msisdn", tags["sample.Phone"])
	assert.Equal(t, "gt", tags["sample.Qty"])
}

func TestValidateReturnsCodedError(t *testing.T) {
	err := Validate(&sample{ID: uuid.New(), Qty: 0})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	assert.NoError(t, Validate(&sample{ID: uuid.New(), Qty: 1, Phone: "0712345678"}))
}

func TestIsMSISDN(t *testing.T) {
	for _, ok := range []string{"0712345678", "254712345678", "+254112345678"} {
		assert.True(t, IsMSISDN(ok), ok)
	}
	for _, bad := range []string{"", "712345678", "0812345678", "25471234567"} {
		assert.False(t, IsMSISDN(bad), bad)
	}
}
