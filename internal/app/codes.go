package app

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// codeAlphabet keeps codes easy to read aloud: uppercase letters and digits.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the length of generated room codes.
const CodeLength = 6

// NewCode generates a random room code. Uniqueness among live rooms is the
// caller's responsibility (regenerate on collision).
func NewCode() (string, error) {
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// NormalizeCode canonicalizes client-supplied codes: case-insensitive on
// input, stored and compared uppercase.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// groupName prefixes a room code with its kind so game and poll groups can
// never collide in the transport layer.
func groupName(kind, code string) string {
	return kind + ":" + code
}

// Display names are auto-assigned sequential placeholders, never user-chosen.

func playerName(n int) string {
	return fmt.Sprintf("Player %d", n)
}

func participantName(n int) string {
	return fmt.Sprintf("Participant %d", n)
}
