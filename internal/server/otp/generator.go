// Package otp generates the short numeric codes used for email verification,
// password reset, and two-factor login.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeLength is the number of digits in a generated code.
const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random 6-digit numeric code, leading
// zeros preserved. The source is crypto/rand; codes authenticate sensitive
// actions and must not be predictable.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("error generating code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}
