package s3

import (
	"encoding/xml"
	"io"
	"net/http"
)

// maxErrorBodySize caps how much of an error body is read while extracting the provider's error pair.
const maxErrorBodySize = 1 << 20

// response is a completed, accepted exchange. The caller owns body and must close it; helpers that decode
// or discard do so on every path.
type response struct {
	status  int
	headers http.Header
	body    io.ReadCloser
}

// classify turns a raw HTTP response into a response or a classified error. A status inside the accepted
// set passes through; anything else becomes an *Error carrying the provider's code/message pair when its
// XML error body yields one, and the generic status text otherwise. The raw body is always consumed or
// handed off, never leaked.
func classify(resp *http.Response, accepted []int) (*response, error) {
	for _, code := range accepted {
		if resp.StatusCode == code {
			return &response{status: resp.StatusCode, headers: resp.Header, body: resp.Body}, nil
		}
	}
	return nil, newProtocolError(resp)
}

// newProtocolError extracts the provider's {code, message} pair from an error body. Missing or malformed
// bodies fall back to the numeric status text; the provider's pair overrides it whenever present.
func newProtocolError(resp *http.Response) *Error {
	protoErr := &Error{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	_ = resp.Body.Close()
	if err != nil || len(raw) == 0 {
		return protoErr
	}

	var body errorResponse
	if xml.Unmarshal(raw, &body) != nil || body.Code == "" {
		return protoErr
	}

	protoErr.Code = body.Code
	protoErr.Message = body.Message
	protoErr.Resource = body.Resource
	protoErr.RequestID = body.RequestID
	return protoErr
}

// decodeXML decodes the response body into v and closes it. Malformed XML yields a *ParseError rather than
// a crash or a half-filled result.
func (r *response) decodeXML(v any) error {
	defer func() { _ = r.body.Close() }()
	if err := xml.NewDecoder(r.body).Decode(v); err != nil {
		return &ParseError{Err: err}
	}
	return nil
}

// discard drains and closes the body of a response whose payload is meaningless (DELETE, HEAD, PUT acks).
// Draining lets the transport reuse the connection.
func (r *response) discard() {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.body, maxErrorBodySize))
	_ = r.body.Close()
}
