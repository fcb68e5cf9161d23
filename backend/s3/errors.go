package s3

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidalfs/objstore"
)

// Error is a classified protocol error: the provider answered with a status outside the operation's accepted
// set. Code and Message carry the provider's own error pair when its XML error body was present and parsable;
// otherwise Message falls back to the generic status text.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Resource   string
	RequestID  string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (http %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("unexpected http status %d: %s", e.StatusCode, e.Message)
}

// TransportError reports that the exchange itself failed: connection, TLS, proxy, DNS, or a canceled context.
// There is no HTTP status in this case (the legacy "status 0" outcome).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError reports a malformed response body where well-formed XML was expected.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse response body: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsNotExist reports whether err means the object or bucket does not exist, as opposed to a transport,
// permission, or other hard failure.
func IsNotExist(err error) bool {
	if errors.Is(err, objstore.ErrNotExist) {
		return true
	}
	var protoErr *Error
	if errors.As(err, &protoErr) {
		return protoErr.StatusCode == http.StatusNotFound ||
			protoErr.Code == "NoSuchKey" || protoErr.Code == "NoSuchBucket"
	}
	return false
}

// errorResponse is the provider's XML error body.
type errorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
}
