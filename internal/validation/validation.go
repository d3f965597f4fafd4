// Package validation provides request validation helpers for the AlgoLend API.
package validation

import (
	"net/http"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/gin-gonic/gin"
)

// AddressLength is the length of a base32 Algorand address.
const AddressLength = 58

// IsValidAddress reports whether addr is a well-formed Algorand address with
// a correct checksum.
func IsValidAddress(addr string) bool {
	if len(addr) != AddressLength {
		return false
	}
	_, err := types.DecodeAddress(addr)
	return err == nil
}

// SanitizeAddress trims whitespace and upper-cases an address. Algorand
// addresses use the upper-case base32 alphabet only.
func SanitizeAddress(addr string) string {
	return strings.ToUpper(strings.TrimSpace(addr))
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate runs validators and collects their errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errs ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidAddress checks if a field is a valid Algorand address
func ValidAddress(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidAddress(value) {
			return &ValidationError{Field: field, Message: "must be a valid Algorand address (58 base32 characters)"}
		}
		return nil
	}
}

// Positive checks that a number is greater than zero
func Positive(field string, value float64) func() *ValidationError {
	return func() *ValidationError {
		if !(value > 0) {
			return &ValidationError{Field: field, Message: "must be greater than zero"}
		}
		return nil
	}
}

// IntRange checks that an integer lies within [min, max]
func IntRange(field string, value, min, max int) func() *ValidationError {
	return func() *ValidationError {
		if value < min || value > max {
			return &ValidationError{Field: field, Message: "is out of range"}
		}
		return nil
	}
}

// PercentMap checks that every value in m lies within [0, 100]
func PercentMap(field string, m map[string]float64) func() *ValidationError {
	return func() *ValidationError {
		for k, v := range m {
			if v < 0 || v > 100 {
				return &ValidationError{Field: field + "." + k, Message: "must be between 0 and 100"}
			}
		}
		return nil
	}
}

// AddressParamMiddleware validates the :address URL parameter on routes that use it.
func AddressParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.Param("address")
		if addr != "" && !IsValidAddress(addr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_address",
				"message": "address must be a valid Algorand address (58 base32 characters)",
			})
			return
		}
		c.Next()
	}
}
