// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/escrow/internal/errors"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+$`)

	// Dot separated RFC 1123 labels. Underscores are accepted for NetBIOS style names.
	hostnameRegex = regexp.MustCompile(
		`^[a-zA-Z0-9]([a-zA-Z0-9_\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9_\-]{0,61}[a-zA-Z0-9])?)*$`,
	)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Owner accepts an email address or a bare username. Bare usernames are qualified with
// the default email domain later, during normalization.
var Owner = validation.NewStringRuleWithError(
	func(s string) bool {
		s = strings.TrimSpace(s)
		if strings.Contains(s, "@") {
			return emailRegex.MatchString(s)
		}
		return usernameRegex.MatchString(s)
	},
	validation.NewError("validation_owner_format", "must be an email address or a username"),
)

// Hostname validates a DNS hostname. Empty values pass; combine with Required when needed.
var Hostname = validation.NewStringRuleWithError(
	func(s string) bool {
		return hostnameRegex.MatchString(strings.TrimSuffix(s, "."))
	},
	validation.NewError("validation_hostname_format", "must be a valid hostname"),
)

// UUID accepts any textual UUID form understood by uuid.Parse.
var UUID = validation.NewStringRuleWithError(
	func(s string) bool {
		return uuid.Validate(s) == nil
	},
	validation.NewError("validation_uuid_format", "must be a valid UUID"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
