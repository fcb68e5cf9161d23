package cloudfront

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // the CDN API's HMAC scheme is defined over SHA-1
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidalfs/objstore/backend/s3"
	"github.com/tidalfs/objstore/utils"
)

// apiVersion prefixes every request path on the CDN API host.
const apiVersion = "2010-11-01"

const defaultUserAgent = "objstore/1.0 (github.com/tidalfs/objstore)"

// Client is a wire-level client for a CloudFront-compatible CDN API: distribution and invalidation
// management plus policy-signed URLs and cookies. It reuses the storage side's transport stack and error
// types; authentication is simpler here, an HMAC over the Date header value alone. Safe for concurrent use
// once constructed.
type Client struct {
	opts       Options
	endpoint   utils.Endpoint
	httpClient *http.Client
	logger     zerolog.Logger
	userAgent  string
	signKey    *rsa.PrivateKey
}

// NewClient validates opts and returns a ready Client. Missing credentials, a malformed endpoint, and an
// unusable signing key all fail here.
func NewClient(opts Options) (*Client, error) {
	endpoint, err := opts.validate()
	if err != nil {
		return nil, err
	}

	signKey, err := opts.loadSigningKey()
	if err != nil {
		return nil, err
	}

	httpClient, err := opts.getHTTPClient()
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		opts:       opts,
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
		signKey:    signKey,
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client and returns the client (chainable).
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

// Endpoint returns the parsed endpoint this client talks to.
func (c *Client) Endpoint() utils.Endpoint {
	return c.endpoint
}

// now returns the signing clock: local time adjusted by the configured offset.
func (c *Client) now() time.Time {
	return time.Now().UTC().Add(c.opts.TimeOffset)
}

/*
	Request plumbing
*/

// apiResponse is one completed, accepted exchange. CDN payloads are small, so the body arrives fully read.
type apiResponse struct {
	status int
	etag   string
	body   []byte
}

// do signs and executes one exchange against the versioned API path, classifying the outcome against the
// operation's accepted status codes.
func (c *Client) do(ctx context.Context, method, apiPath string, query url.Values, ifMatch string, body []byte, accepted ...int) (*apiResponse, error) {
	if c == nil {
		return nil, errors.New("non-nil cloudfront.Client pointer is required")
	}

	u := c.endpoint.Scheme() + "://" + c.endpoint.HostPortStr() + "/" + apiVersion + apiPath
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.ContentLength = int64(len(body))
		req.Header.Set("Content-Type", "text/xml")
	}

	date := c.now().Format(http.TimeFormat)
	req.Header.Set("Date", date)
	req.Header.Set("Authorization", "AWS "+c.opts.AccessKeyID+":"+signHMAC(date, c.opts.SecretAccessKey))
	req.Header.Set("User-Agent", c.userAgent)
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}

	start := time.Now()
	rawResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().
			Str("method", method).
			Str("host", req.URL.Host).
			Str("path", req.URL.Path).
			Err(err).
			Msg("request failed")
		return nil, &s3.TransportError{Err: err}
	}

	data, err := io.ReadAll(rawResp.Body)
	_ = rawResp.Body.Close()
	c.logger.Debug().
		Str("method", method).
		Str("host", req.URL.Host).
		Str("path", req.URL.Path).
		Int("status", rawResp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")
	if err != nil {
		return nil, &s3.TransportError{Err: err}
	}

	for _, code := range accepted {
		if rawResp.StatusCode == code {
			return &apiResponse{status: rawResp.StatusCode, etag: rawResp.Header.Get("ETag"), body: data}, nil
		}
	}
	return nil, newProtocolError(rawResp.StatusCode, data)
}

// doXML executes the exchange and decodes the accepted body into v, returning the response for its ETag.
func (c *Client) doXML(ctx context.Context, method, apiPath string, query url.Values, ifMatch string, body []byte, v any, accepted ...int) (*apiResponse, error) {
	resp, err := c.do(ctx, method, apiPath, query, ifMatch, body, accepted...)
	if err != nil {
		return nil, err
	}
	if err := xml.Unmarshal(resp.body, v); err != nil {
		return nil, &s3.ParseError{Err: err}
	}
	return resp, nil
}

/*
	Classification
*/

// cfErrorResponse is the CDN API's error body: the code/message pair nested under an ErrorResponse root,
// unlike the storage API's flat Error document.
type cfErrorResponse struct {
	XMLName   xml.Name `xml:"ErrorResponse"`
	Type      string   `xml:"Error>Type"`
	Code      string   `xml:"Error>Code"`
	Message   string   `xml:"Error>Message"`
	RequestID string   `xml:"RequestId"`
}

type flatErrorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
}

// newProtocolError extracts the provider's code/message pair when present, falling back to the status
// text. A 412 means the submitted concurrency token went stale and additionally carries ErrStaleETag.
func newProtocolError(status int, body []byte) error {
	perr := &s3.Error{StatusCode: status, Message: http.StatusText(status)}

	var wrapped cfErrorResponse
	var flat flatErrorResponse
	switch {
	case xml.Unmarshal(body, &wrapped) == nil && wrapped.Code != "":
		perr.Code, perr.Message, perr.RequestID = wrapped.Code, wrapped.Message, wrapped.RequestID
	case xml.Unmarshal(body, &flat) == nil && flat.Code != "":
		perr.Code, perr.Message, perr.RequestID = flat.Code, flat.Message, flat.RequestID
	}

	if status == http.StatusPreconditionFailed {
		return fmt.Errorf("%w: %w", ErrStaleETag, perr)
	}
	return perr
}

func signHMAC(stringToSign, secretAccessKey string) string {
	mac := hmac.New(sha1.New, []byte(secretAccessKey))
	_, _ = mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
