package match

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// NewScoreValidator returns a validator that understands the cricket_overs tag used on TeamScore.
func NewScoreValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cricket_overs", func(fl validator.FieldLevel) bool {
		return ValidOvers(fl.Field().Float())
	})
	return v
}

// InvalidScoreFields lists the TeamScore fields (Runs, Wickets, Overs) that break score invariants.
func InvalidScoreFields(v *validator.Validate, score TeamScore) []string {
	if v == nil {
		return nil
	}
	err := v.Struct(score)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, fe.StructField())
	}
	return out
}
