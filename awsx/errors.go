package awsx

import (
	"errors"

	"github.com/aws/smithy-go"
)

// Error codes that mean "the thing is already gone". Deletion is
// at-least-once, so these are success conditions, not failures.
var notFoundCodes = map[string]struct{}{
	"NoSuchBucket":                        {},
	"NoSuchLifecycleConfiguration":        {},
	"NoSuchDistribution":                  {},
	"NoSuchHostedZone":                    {},
	"NoSuchHealthCheck":                   {},
	"NoSuchEntity":                        {},
	"NotFoundException":                   {},
	"NotFound":                            {},
	"ResourceNotFoundException":           {},
	"ParameterNotFound":                   {},
	"WAFNonexistentItemException":         {},
	"TrailNotFoundException":              {},
	"PolicyNotFoundException":             {},
	"OrganizationalUnitNotFoundException": {},
	"AccountNotFoundException":            {},
}

// ErrorCode extracts the AWS API error code, or "" for non-API errors.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsNotFound reports whether err means the resource no longer exists.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	_, ok := notFoundCodes[ErrorCode(err)]
	return ok
}

// IsCode reports whether err carries the given AWS API error code.
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// IsAccessDenied reports whether err is an authorization failure.
func IsAccessDenied(err error) bool {
	switch ErrorCode(err) {
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation":
		return true
	}
	return false
}
