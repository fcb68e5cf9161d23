package objstore

// Error is a type that allows for error constants below
type Error string

// Error returns a string representation of the error
func (e Error) Error() string { return string(e) }

const (
	// ErrMissingCredentials - a signed call was attempted before an access key id and secret access key were configured
	ErrMissingCredentials = Error("access key id and secret access key are required before any signed call")

	// ErrInvalidEndpoint - the configured endpoint could not be parsed into host[:port]
	ErrInvalidEndpoint = Error("endpoint is invalid - expecting host[:port] with optional http(s):// scheme")

	// ErrNotExist - object does not exist
	ErrNotExist = Error("object does not exist")

	// ErrUnknownLength - a bodied request was attempted without a known, non-negative content length
	ErrUnknownLength = Error("content length must be known and non-negative for uploads")

	// ErrNilBody - a bodied request was attempted with no body source attached
	ErrNilBody = Error("exactly one body source (bytes, file, or reader) is required")
)
