package domain

import "fmt"

// AppError is an error that maps onto an HTTP status and a stable code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// ErrRestrictionNotFound reports a removal that matched no record. An empty t
// means the lookup was by value across all identifier types.
func ErrRestrictionNotFound(t IdentifierType, value string) *AppError {
	msg := fmt.Sprintf("no restriction on %q", value)
	if t != "" {
		msg = fmt.Sprintf("no %s restriction on %q", t, value)
	}
	return &AppError{Code: "NOT_FOUND", Message: msg, Status: 404}
}

// ErrUnknownIdentifierType rejects an identifier type outside ip_address, uuid
// and account_name.
func ErrUnknownIdentifierType(raw string) *AppError {
	return ErrValidation(fmt.Sprintf("unknown identifier type: %q", raw))
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: "RATE_LIMITED", Message: msg, Status: 429}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}
