package core

// Error codes for domain errors.
const (
	ErrCodeValidation        = "validation_error"
	ErrCodeProtocol          = "protocol_error"
	ErrCodeAuthorization     = "authorization_denied"
	ErrCodeTargetUnavailable = "target_unavailable"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}
