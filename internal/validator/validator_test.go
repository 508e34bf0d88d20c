package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name     string   `json:"name" validate:"required"`
	Text     string   `json:"text" validate:"max=5"`
	Score    int      `json:"score" validate:"min=1,max=5"`
	Priority string   `json:"priority,omitempty" validate:"omitempty,oneof=low high"`
	Tags     []string `json:"tags" validate:"max=1"`
	Email    string   `json:"email" validate:"omitempty,email"`
}

func TestStruct(t *testing.T) {
	assert.Empty(t, Struct(sample{Name: "a", Score: 3}))

	errs := Struct(sample{
		Text:     "too long",
		Score:    9,
		Priority: "urgent",
		Tags:     []string{"a", "b"},
		Email:    "nope",
	})
	assert.ElementsMatch(t, []string{
		"name field is required",
		"text length must be less than or equal to 5",
		"score must be less than or equal to 5",
		"priority must be one of [low high]",
		"tags must contain at most 1 items",
		"email must be a valid email",
	}, errs)
}

func TestParseErrorsUnknown(t *testing.T) {
	assert.Equal(t, []string{"Unknown error"}, ParseErrors(errors.New("boom")))
}
