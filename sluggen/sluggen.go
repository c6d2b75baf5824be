// Package sluggen derives short URL codes from numeric record ids.
// Codes are base62 and left-padded to a minimum width, so distinct ids always
// produce distinct codes and the same id always produces the same code.
package sluggen

import (
	"errors"
	"math"
	"strings"
)

const (
	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// DefaultMinLength pads codes for small ids ("1" becomes "001").
	DefaultMinLength = 3
)

var (
	ErrNonPositiveID = errors.New("id must be positive")
	ErrInvalidCode   = errors.New("code contains non-base62 characters")
)

// Encoder converts record ids to short codes and back.
// Implementations must be safe for concurrent use.
type Encoder interface {
	Encode(id int64) (string, error)
	Decode(code string) (int64, error)
}

type base62Encoder struct {
	minLength int
}

// NewBase62 returns an Encoder that pads codes to minLength characters.
// Values below 1 fall back to DefaultMinLength.
func NewBase62(minLength int) Encoder {
	if minLength < 1 {
		minLength = DefaultMinLength
	}
	return &base62Encoder{minLength: minLength}
}

func (e *base62Encoder) Encode(id int64) (string, error) {
	if id <= 0 {
		return "", ErrNonPositiveID
	}

	var buf [11]byte // 62^11 > 2^63
	i := len(buf)
	for n := id; n > 0; n /= 62 {
		i--
		buf[i] = base62Chars[n%62]
	}

	code := string(buf[i:])
	if pad := e.minLength - len(code); pad > 0 {
		code = strings.Repeat(base62Chars[:1], pad) + code
	}
	return code, nil
}

func (e *base62Encoder) Decode(code string) (int64, error) {
	if code == "" {
		return 0, ErrInvalidCode
	}

	var id int64
	for i := 0; i < len(code); i++ {
		v := strings.IndexByte(base62Chars, code[i])
		if v < 0 {
			return 0, ErrInvalidCode
		}
		if id > (math.MaxInt64-int64(v))/62 {
			return 0, errors.New("code overflows int64")
		}
		id = id*62 + int64(v)
	}

	if id <= 0 {
		return 0, ErrNonPositiveID
	}
	return id, nil
}
