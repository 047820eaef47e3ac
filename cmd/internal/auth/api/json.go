package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Matrix error codes used by this API.
const (
	ErrCodeNotJSON       = "M_NOT_JSON"
	ErrCodeBadJSON       = "M_BAD_JSON"
	ErrCodeUnrecognized  = "M_UNRECOGNIZED"
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeTooLarge      = "M_TOO_LARGE"
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeUnknown       = "M_UNKNOWN"
)

const (
	msgMalformed       = "Malformed request"
	msgUnsupportedType = "Unsupported login type"
	msgBadCredentials  = "Invalid username or password"
	msgInvalidToken    = "Invalid access token"
	msgInternal        = "Internal server error"
)

var errExtraData = errors.New("extra data after JSON object")

type matrixError struct {
	ErrCode      string `json:"errcode"`
	Error        string `json:"error"`
	SoftLogout   *bool  `json:"soft_logout,omitempty"`
	RetryAfterMs *int64 `json:"retry_after_ms,omitempty"`
}

var emptyObject = struct{}{}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, matrixError{ErrCode: code, Error: msg})
}

func writeUnknownToken(w http.ResponseWriter) {
	soft := false
	writeJSON(w, http.StatusUnauthorized, matrixError{ErrCode: ErrCodeUnknownToken, Error: msgInvalidToken, SoftLogout: &soft})
}

func writeInternal(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, ErrCodeUnknown, msgInternal)
}

// decodeJSON reads exactly one JSON value into dst. Unknown fields are
// accepted: Matrix clients routinely send fields a server does not use.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return io.EOF
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errExtraData
	}
	return nil
}

// writeDecodeError maps a decodeJSON failure to its Matrix error.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, ErrCodeNotJSON, msgMalformed)
}
