package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string  `json:"name" validate:"required"`
	Level string  `json:"level" validate:"oneof=debug info"`
	Time  float64 `json:"time" validate:"gte=0"`
	Tag   string  `json:"tag" validate:"max=2"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	errs, ok := v.Validate(sample{Level: "trace", Time: -1, Tag: "long"})
	require.False(t, ok)
	require.Len(t, errs, 4)

	assert.Equal(t, ValidationError{Field: "name", Code: "REQUIRED", Message: "name is required"}, errs[0])
	assert.Equal(t, "ONEOF", errs[1].Code)
	assert.Equal(t, "time must be greater than or equal to 0", errs[2].Message)
	assert.Equal(t, "MAX", errs[3].Code)
}

func TestStruct(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.Struct(sample{Name: "a", Level: "info"}))

	err := v.Struct(sample{Level: "info"})
	var verrs Errors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "name is required", err.Error())
}
