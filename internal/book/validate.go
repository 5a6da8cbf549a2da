package book

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// normalize trims surrounding whitespace so a blank name counts as missing.
func normalize(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	return in
}

// ValidateInput checks in against the book rules and returns a *ValidationError
// for the first offending field.
func ValidateInput(in Input) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalidField("input", "input is invalid")
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return invalidField(field, "%s is required", field)
	case "max":
		return invalidField(field, "%s must be at most %s characters", field, fe.Param())
	default:
		return invalidField(field, "%s is invalid", field)
	}
}
