package service

import (
	"fmt"
	"math"
	"strings"
)

const (
	// Base62 characters: 0-9, a-z, A-Z (case sensitive)
	base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	tokenSalt uint64 = 0x9E3779B97F4A7C15
)

// encodeToken turns a feed offset into an opaque page token
func encodeToken(offset int) string {
	return toBase62(uint64(offset) ^ tokenSalt)
}

// decodeToken reverses encodeToken; the empty token is offset zero
func decodeToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	n, err := fromBase62(token)
	if err != nil {
		return 0, err
	}
	offset := n ^ tokenSalt
	if offset > 1<<31 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	return int(offset), nil
}

func toBase62(num uint64) string {
	if num == 0 {
		return "0"
	}

	var b []byte
	for num > 0 {
		b = append(b, base62Chars[num%62])
		num /= 62
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func fromBase62(s string) (uint64, error) {
	var result uint64
	for _, c := range s {
		v := strings.IndexRune(base62Chars, c)
		if v < 0 || result > (math.MaxUint64-uint64(v))/62 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidToken, s)
		}
		result = result*62 + uint64(v)
	}
	return result, nil
}
