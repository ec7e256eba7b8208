package utils

import (
	"crypto/rand"
	"fmt"
)

// inviteAlphabet omits look-alike characters (0/O, 1/I). Its length of 32
// keeps the byte-to-symbol mapping unbiased.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const inviteCodeLen = 8

// GenerateInviteCode returns a random code such as "K7QM-2XPA".
func GenerateInviteCode() (string, error) {
	raw := make([]byte, inviteCodeLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	code := make([]byte, 0, inviteCodeLen+1)
	for i, b := range raw {
		if i == inviteCodeLen/2 {
			code = append(code, '-')
		}
		code = append(code, inviteAlphabet[int(b)%len(inviteAlphabet)])
	}
	return string(code), nil
}
