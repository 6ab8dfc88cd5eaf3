package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Custom validation tags.
const (
	// TagSessionID 会话标识：1-128 位字母、数字及 . _ : -
	TagSessionID = "sessionid"
)

var sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagSessionID, validateSessionID)

	registerTranslation(v.validate, v.trans[LangEN], TagSessionID,
		"{0} must be 1-128 characters of letters, digits, '.', '_', ':' or '-'")
	registerTranslation(v.validate, v.trans[LangZH], TagSessionID,
		"{0}只能包含字母、数字及 . _ : -，长度 1-128")
}

func validateSessionID(fl validator.FieldLevel) bool {
	return sessionIDRegex.MatchString(fl.Field().String())
}
