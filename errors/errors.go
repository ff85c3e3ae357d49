package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

// Kind classifies pipeline and API errors so that workers can decide
// between retrying, failing the record, or surfacing to the caller.
type Kind string

const (
	KindTransient    Kind = "transient"
	KindInputInvalid Kind = "input_invalid"
	KindContract     Kind = "contract"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindCancelled    Kind = "cancelled"
	KindInternal     Kind = "internal"
)

type kindedError struct {
	kind Kind
	err  error
}

func (e kindedError) Error() string { return fmt.Sprintf("%s: %s", e.kind, e.err) }
func (e kindedError) Unwrap() error { return e.err }

// New wraps err with a classification. A nil err returns nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return kindedError{kind: kind, err: err}
}

func Transient(err error) error    { return New(KindTransient, err) }
func InputInvalid(err error) error { return New(KindInputInvalid, err) }
func Contract(err error) error     { return New(KindContract, err) }
func Forbidden(err error) error    { return New(KindForbidden, err) }
func NotFound(err error) error     { return New(KindNotFound, err) }
func Cancelled(err error) error    { return New(KindCancelled, err) }
func Internal(err error) error     { return New(KindInternal, err) }

// KindOf returns the classification of err, defaulting to KindInternal
// for unclassified errors so that unexpected failures get the
// retry-once-then-fail treatment.
func KindOf(err error) Kind {
	var ke kindedError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindInternal
}

// IsRetriable reports whether a worker should re-run the stage that
// produced err. Transient errors get the full retry budget; Internal
// errors are retried once.
func IsRetriable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindInternal:
		return !IsUnretriable(err)
	default:
		return false
	}
}

// Unretriable marks err as permanent for backoff.Retry loops, so a
// retry wrapper stops immediately regardless of remaining budget.
func Unretriable(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func IsUnretriable(err error) bool {
	var permErr *backoff.PermanentError
	return errors.As(err, &permErr)
}

type apiError struct {
	Msg    string `json:"message"`
	Status int    `json:"status"`
	Err    error  `json:"-"`
}

func writeHttpError(w http.ResponseWriter, msg string, status int, err error) apiError {
	var errorDetail string
	if err != nil {
		errorDetail = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "error_detail": errorDetail})

	return apiError{msg, status, err}
}

// HTTP Errors
func WriteHTTPUnauthorized(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnauthorized, err)
}

func WriteHTTPForbidden(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusForbidden, err)
}

func WriteHTTPBadRequest(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusBadRequest, err)
}

func WriteHTTPNotFound(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusNotFound, err)
}

func WriteHTTPUnsupportedMediaType(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnsupportedMediaType, err)
}

func WriteHTTPInternalServerError(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusInternalServerError, err)
}

// WriteHTTPError picks the response status from the error's Kind.
func WriteHTTPError(w http.ResponseWriter, msg string, err error) apiError {
	switch KindOf(err) {
	case KindContract, KindInputInvalid:
		return WriteHTTPBadRequest(w, msg, err)
	case KindForbidden:
		return WriteHTTPForbidden(w, msg, err)
	case KindNotFound:
		return WriteHTTPNotFound(w, msg, err)
	default:
		return WriteHTTPInternalServerError(w, msg, err)
	}
}
