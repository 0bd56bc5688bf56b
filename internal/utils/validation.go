package contextutils

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Neo N3 script hashes and Neo X addresses share the 0x + 20 byte hex form
	_ = v.RegisterValidation("contract_address", func(fl validator.FieldLevel) bool {
		return IsValidContractAddress(fl.Field().String())
	})
	_ = v.RegisterValidation("app_slug", func(fl validator.FieldLevel) bool {
		return IsValidAppSlug(fl.Field().String())
	})
	return v
}

// IsValidEmail checks if an email address is valid using go-playground/validator
func IsValidEmail(email string) bool {
	return validate.Var(email, "email") == nil
}

// IsValidContractAddress reports whether addr is a 0x-prefixed 20 byte hex string
func IsValidContractAddress(addr string) bool {
	return strings.HasPrefix(addr, "0x") && common.IsHexAddress(addr)
}

// IsValidAppSlug reports whether s is a lower-case hyphenated miniapp directory name
func IsValidAppSlug(s string) bool {
	if s == "" || strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}

// ValidateStruct runs the shared validator over v and flattens field errors
// into a sorted list of "Namespace: tag" strings.
func ValidateStruct(v interface{}) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	sort.Strings(problems)
	return problems
}
