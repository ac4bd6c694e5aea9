package resource

// Kind classifies an Error into the response family the transport uses.
type Kind int

const (
	// KindRequest is the malformed-request family surfaced by the token
	// verification endpoints with a 400-class status before any business
	// logic runs.
	KindRequest Kind = iota
	// KindAPI is a business/authorization failure, surfaced as a
	// status:error envelope at HTTP 200.
	KindAPI
	// KindValidation is a field validation failure with a human-readable
	// message, surfaced as a generic bad request.
	KindValidation
)

// Stable machine-readable error codes.
const (
	CodeNoResource        = "no_resource"
	CodeUnknownResource   = "unknown_resource"
	CodeNoToken           = "no_token"
	CodeClientNoResources = "client_no_resources"
	CodeAccessDenied      = "access_denied"
	CodeNoAccess          = "no_access"
	CodeNotFound          = "not_found"
	CodeInsufficientScope = "insufficient_scope"
	CodeUntrustedClient   = "untrusted_client"
	CodeTokenWithoutUser  = "token_without_user"
	CodeNotImplemented    = "not_implemented"
)

// Error is a terminal, caller-recoverable failure of a resource or token
// operation. Storage faults are not wrapped in Error; they propagate as-is.
type Error struct {
	Kind        Kind
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

func requestErr(code string) *Error { return &Error{Kind: KindRequest, Code: code} }

func apiErr(code string) *Error { return &Error{Kind: KindAPI, Code: code} }

func validationErr(msg string) *Error {
	return &Error{Kind: KindValidation, Code: "bad_request", Description: msg}
}
