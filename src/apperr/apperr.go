// Package apperr defines the stable error taxonomy shared by the
// escrow and reputation engines. Every failure an engine can produce
// carries exactly one Code so callers and tests can branch on cause.
package apperr

import "fmt"

// Code is a machine-readable error code.
type Code string

const (
	// Validation errors (caller data violates a precondition).
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeEscrowIDTooLong    Code = "ESCROW_ID_TOO_LONG"
	CodeAgentIDTooLong     Code = "AGENT_ID_TOO_LONG"
	CodeTaskIDTooLong      Code = "TASK_ID_TOO_LONG"
	CodeMetadataURITooLong Code = "METADATA_URI_TOO_LONG"
	CodeCommentTooLong     Code = "COMMENT_TOO_LONG"
	CodeInvalidRating      Code = "INVALID_RATING"
	CodeInvalidAddress     Code = "INVALID_ADDRESS"

	// State errors.
	CodeEscrowNotPending Code = "ESCROW_NOT_PENDING"
	CodeEscrowExists     Code = "ESCROW_EXISTS"
	CodeAgentExists      Code = "AGENT_EXISTS"
	CodeTaskExists       Code = "TASK_EXISTS"
	CodeNotFound         Code = "NOT_FOUND"

	// Authorization errors.
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeSelfAttestation Code = "SELF_ATTESTATION"
	CodeBadAuthority    Code = "BAD_AUTHORITY"

	// Timing errors.
	CodeReleaseTimeNotReached Code = "RELEASE_TIME_NOT_REACHED"
	CodeDisputePeriodActive   Code = "DISPUTE_PERIOD_ACTIVE"

	// Ledger errors.
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeUnknownAsset      Code = "UNKNOWN_ASSET"
)

// Error pairs a Code with a human-readable message.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// New builds an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from an error, or the empty string when err
// is not an apperr.Error.
func CodeOf(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// Is lets errors.Is match two apperr errors by code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
