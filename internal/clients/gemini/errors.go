package gemini

// ClientError represents an error from the generative provider client
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches any ClientError of the same Type, so sentinel checks survive wrapping
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// ErrorType categorizes client errors for handling
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeMissingCredential
	ErrTypeUnauthorized
	ErrTypeRateLimited
	ErrTypeTimeout
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypeInvalidRequest
)

// Sentinel errors for easy checking
var (
	ErrMissingCredential = &ClientError{Type: ErrTypeMissingCredential, Message: "provider API key not configured"}
	ErrUnauthorized      = &ClientError{Type: ErrTypeUnauthorized, Message: "provider rejected the API key"}
	ErrRateLimited       = &ClientError{Type: ErrTypeRateLimited, Message: "provider rate limit exceeded"}
	ErrTimeout           = &ClientError{Type: ErrTypeTimeout, Message: "provider request timed out"}
	ErrInvalidResponse   = &ClientError{Type: ErrTypeInvalidResponse, Message: "invalid provider response"}
	ErrInvalidRequest    = &ClientError{Type: ErrTypeInvalidRequest, Message: "invalid request"}
)
