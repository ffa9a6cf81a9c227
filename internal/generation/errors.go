package generation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies generation failures so the application layer can
// render an appropriate message without parsing free text.
type ErrorKind string

const (
	// ErrorCreditExhausted means the provider rejected the call for
	// quota/payment reasons. The caller should prompt for billing action.
	ErrorCreditExhausted ErrorKind = "CREDIT_EXHAUSTED"
	// ErrorGenerationFailed means the provider explicitly reported failure.
	ErrorGenerationFailed ErrorKind = "GENERATION_FAILED"
	// ErrorArtifactExtraction means the provider reported completion but no
	// artifact URL could be located in any known response shape.
	ErrorArtifactExtraction ErrorKind = "ARTIFACT_EXTRACTION_FAILED"
	// ErrorTimeout means a bounded poll loop exceeded its attempt budget.
	ErrorTimeout ErrorKind = "TIMEOUT"
	// ErrorAssemblyFailed means the media assembly engine could not produce
	// or locate its expected output artifact.
	ErrorAssemblyFailed ErrorKind = "ASSEMBLY_FAILED"
)

// Error is a classified generation failure. It carries the kind plus a
// human-readable diagnostic aggregated from one or more attempts.
type Error struct {
	Kind    ErrorKind
	Message string
	wrapped error
}

// NewError creates a classified error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a classified error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an underlying error with a classification, preserving the
// original for errors.Is/As chains.
func WrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), wrapped: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", string(e.Kind), e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// KindOf extracts the ErrorKind from an error chain. Unclassified errors
// report ErrorGenerationFailed.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ErrorGenerationFailed
}

// ClassifyFailure maps a provider failure to an ErrorKind. HTTP 402/403 and
// payment/forbidden wording indicate exhausted credits; everything else is
// a generic generation failure.
func ClassifyFailure(statusCode int, message string) ErrorKind {
	if statusCode == http.StatusPaymentRequired || statusCode == http.StatusForbidden {
		return ErrorCreditExhausted
	}
	lower := strings.ToLower(message)
	if strings.Contains(lower, "payment") || strings.Contains(lower, "forbidden") ||
		strings.Contains(lower, "exhausted") || strings.Contains(lower, "insufficient credit") {
		return ErrorCreditExhausted
	}
	return ErrorGenerationFailed
}
