package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sundayezeilo/bookmarker/internal/errx"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (1MB).
	MaxRequestBodySize = 1 << 20
)

// DecodeJSON decodes a single JSON object from the request body into T.
// Unknown fields are rejected. Every failure is an errx.Invalid error whose
// message can be shown to the client.
func DecodeJSON[T any](r *http.Request) (T, error) {
	const op = "httpx.DecodeJSON"
	var zeroValue T

	if r.Body == nil || r.Body == http.NoBody {
		return zeroValue, errx.M(op, errx.Invalid, "request body is empty")
	}

	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	defer func() {
		_ = r.Body.Close()
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var v T
	if err := decoder.Decode(&v); err != nil {
		var syntaxErr *json.SyntaxError
		var unmarshalErr *json.UnmarshalTypeError
		var maxBytesErr *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxErr):
			return zeroValue, errx.M(op, errx.Invalid, fmt.Sprintf("malformed JSON at position %d", syntaxErr.Offset))
		case errors.As(err, &unmarshalErr):
			return zeroValue, errx.M(op, errx.Invalid, fmt.Sprintf("invalid value for field %q", unmarshalErr.Field))
		case errors.As(err, &maxBytesErr):
			return zeroValue, errx.M(op, errx.Invalid, fmt.Sprintf("request body too large (max %d bytes)", MaxRequestBodySize))
		case errors.Is(err, io.EOF):
			return zeroValue, errx.M(op, errx.Invalid, "request body is empty")
		case errors.Is(err, io.ErrUnexpectedEOF):
			return zeroValue, errx.M(op, errx.Invalid, "malformed JSON")
		default:
			return zeroValue, errx.M(op, errx.Invalid, err.Error())
		}
	}

	if decoder.More() {
		return zeroValue, errx.M(op, errx.Invalid, "request body contains multiple JSON objects")
	}

	return v, nil
}

// QueryInt reads an integer query parameter, returning def when it is absent.
func QueryInt(r *http.Request, key string, def int) (int, error) {
	const op = "httpx.QueryInt"

	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errx.M(op, errx.Invalid, fmt.Sprintf("query parameter %q must be an integer", key))
	}
	return n, nil
}
