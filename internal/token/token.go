// Package token implements the opaque token primitives used by the gateway:
// a base-57 integer codec, unguessable delivery tokens derived from UUIDs,
// and random CSRF state tokens.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// Alphabet excludes visually ambiguous characters (0, 1, l, I, O).
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var base = big.NewInt(int64(len(Alphabet)))

// Encode renders a non-negative integer in the 57-symbol alphabet,
// most significant digit first. Encode of zero is the first alphabet
// character, never the empty string.
func Encode(n *big.Int) string {
	if n.Sign() < 0 {
		panic("token: Encode requires a non-negative integer")
	}
	if n.Sign() == 0 {
		return Alphabet[:1]
	}

	var sb strings.Builder
	rem := new(big.Int)
	cur := new(big.Int).Set(n)
	for cur.Sign() > 0 {
		cur.QuoRem(cur, base, rem)
		sb.WriteByte(Alphabet[rem.Int64()])
	}

	// digits were produced least significant first
	b := []byte(sb.String())
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// Decode is the inverse of Encode. Any character outside the alphabet is
// a decode error.
func Decode(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("token: cannot decode empty string")
	}
	n := big.NewInt(0)
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(Alphabet, s[i])
		if idx < 0 {
			return nil, fmt.Errorf("token: invalid character %q at position %d", s[i], i)
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(idx)))
	}
	return n, nil
}

// NewDelivery returns a fresh delivery token: the 128-bit integer value of a
// random UUID (122 random bits) rendered in the opaque alphabet. Used purely
// as an unguessable KV-store key.
func NewDelivery() string {
	u := uuid.New()
	return Encode(new(big.Int).SetBytes(u[:]))
}

// NewState returns a random 128-bit hex-encoded CSRF state token.
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
