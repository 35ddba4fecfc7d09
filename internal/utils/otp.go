package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPDigits is the length of every one-time passcode.
const OTPDigits = 6

var otpSpace = big.NewInt(1_000_000)

// NewOTP returns a uniformly distributed, zero-padded 6-digit code.
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}
