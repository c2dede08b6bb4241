// Package regerr defines the error taxonomy the HTTP surface speaks.
// pkg/upload returns a *RegistryError at its public boundary; pkg/storage,
// pkg/metadataindex and pkg/refs return their own error types, which
// pkg/registry wraps into a *RegistryError. Only pkg/registry translates
// Kind/Code into an HTTP status and the v2 error envelope.
package regerr

import "fmt"

// Kind is the semantic category of a failure, independent of its wire code.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindConflict
	KindUnauthorized
	KindDenied
	KindIntegrity
	KindTransient
	KindFatal
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindDenied:
		return "denied"
	case KindIntegrity:
		return "integrity"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindRange:
		return "range"
	default:
		return "unknown"
	}
}

// Registry v2 error codes, per the distribution spec error envelope.
const (
	CodeBlobUnknown         = "BLOB_UNKNOWN"
	CodeBlobUploadInvalid   = "BLOB_UPLOAD_INVALID"
	CodeBlobUploadUnknown   = "BLOB_UPLOAD_UNKNOWN"
	CodeDigestInvalid       = "DIGEST_INVALID"
	CodeManifestBlobUnknown = "MANIFEST_BLOB_UNKNOWN"
	CodeManifestInvalid     = "MANIFEST_INVALID"
	CodeManifestUnknown     = "MANIFEST_UNKNOWN"
	CodeNameInvalid         = "NAME_INVALID"
	CodeNameUnknown         = "NAME_UNKNOWN"
	CodeSizeInvalid         = "SIZE_INVALID"
	CodeTagInvalid          = "TAG_INVALID"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeDenied              = "DENIED"
	CodeUnsupported         = "UNSUPPORTED"
	CodeRangeInvalid        = "RANGE_INVALID"
	CodeUnknown             = "UNKNOWN"
)

// RegistryError is the one error type every component boundary speaks.
type RegistryError struct {
	Kind    Kind
	Code    string
	Message string
	Detail  any
	cause   error
}

func (e *RegistryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RegistryError) Unwrap() error {
	return e.cause
}

// New builds a RegistryError with no wrapped cause.
func New(kind Kind, code, message string, detail any) *RegistryError {
	return &RegistryError{Kind: kind, Code: code, Message: message, Detail: detail}
}

// Wrap builds a RegistryError that carries an underlying cause for logging.
func Wrap(kind Kind, code, message string, cause error) *RegistryError {
	return &RegistryError{Kind: kind, Code: code, Message: message, cause: cause}
}

func NotFound(code, message string) *RegistryError {
	return New(KindNotFound, code, message, nil)
}

func Validation(code, message string, detail any) *RegistryError {
	return New(KindValidation, code, message, detail)
}

func Conflict(code, message string) *RegistryError {
	return New(KindConflict, code, message, nil)
}

func Denied(message string) *RegistryError {
	return New(KindDenied, CodeDenied, message, nil)
}

func Unauthorized(message string) *RegistryError {
	return New(KindUnauthorized, CodeUnauthorized, message, nil)
}

func Integrity(code, message string, detail any) *RegistryError {
	return New(KindIntegrity, code, message, detail)
}

func Transient(message string, cause error) *RegistryError {
	return Wrap(KindTransient, CodeUnknown, message, cause)
}

// RangeNotSatisfiable marks a byte-range/upload-offset request the Content
// Store or Upload Session Manager cannot honor against current state.
func RangeNotSatisfiable(code, message string, detail any) *RegistryError {
	return New(KindRange, code, message, detail)
}

func Fatal(message string, cause error) *RegistryError {
	return Wrap(KindFatal, CodeUnknown, message, cause)
}

// As extracts a *RegistryError from err, synthesizing a Fatal one for
// anything that isn't already typed so callers always have a Kind/Code
// to work with.
func As(err error) *RegistryError {
	if err == nil {
		return nil
	}
	var re *RegistryError
	if ok := asRegistryError(err, &re); ok {
		return re
	}
	return Fatal("unclassified error", err)
}

func asRegistryError(err error, target **RegistryError) bool {
	for err != nil {
		if re, ok := err.(*RegistryError); ok {
			*target = re
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
