// Package base58 implements the Bitcoin base58 text encoding on top of
// arbitrary-precision integers.
package base58

import (
	"errors"
	"fmt"
	"math/big"
)

// Alphabet is the Bitcoin base58 alphabet. It omits 0, O, I and l.
const Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ErrInvalidCharacter is returned by Decode for input outside Alphabet.
var ErrInvalidCharacter = errors.New("invalid base58 character")

var (
	bigRadix = big.NewInt(58)
	bigZero  = big.NewInt(0)

	decodeMap = buildDecodeMap()
)

func buildDecodeMap() [256]int8 {
	var m [256]int8
	for i := range m {
		m[i] = -1
	}

	for i := 0; i < len(Alphabet); i++ {
		m[Alphabet[i]] = int8(i)
	}

	return m
}

// EncodedLen returns an upper bound on the encoded length of n bytes.
// log(256)/log(58) is just under 1.38.
func EncodedLen(n int) int {
	return n*138/100 + 1
}

// Encode treats b as a big-endian unsigned integer and returns its base58
// form. Every leading zero byte becomes one leading '1'.
func Encode(b []byte) string {
	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}

	// Digits are accumulated least significant first and reversed at the
	// end, so the leading '1's go after the value digits.
	digits := make([]byte, 0, EncodedLen(len(b)-zeros)+zeros)

	x := new(big.Int).SetBytes(b)
	mod := new(big.Int)

	for x.Cmp(bigZero) > 0 {
		x.DivMod(x, bigRadix, mod)
		digits = append(digits, Alphabet[mod.Int64()])
	}

	for i := 0; i < zeros; i++ {
		digits = append(digits, Alphabet[0])
	}

	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}

	return string(digits)
}

// Decode is the inverse of Encode.
func Decode(s string) ([]byte, error) {
	zeros := 0
	for zeros < len(s) && s[zeros] == Alphabet[0] {
		zeros++
	}

	x := new(big.Int)
	digit := new(big.Int)

	for i := zeros; i < len(s); i++ {
		v := decodeMap[s[i]]
		if v < 0 {
			return nil, fmt.Errorf("%w %q at offset %d",
				ErrInvalidCharacter, s[i], i)
		}

		x.Mul(x, bigRadix)
		x.Add(x, digit.SetInt64(int64(v)))
	}

	value := x.Bytes()
	out := make([]byte, zeros+len(value))
	copy(out[zeros:], value)

	return out, nil
}
