package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewOTP returns a zero-padded numeric one-time code of the given
// length, e.g. "042913" for length 6.
func NewOTP(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
