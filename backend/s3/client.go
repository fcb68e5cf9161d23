package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidalfs/objstore"
	"github.com/tidalfs/objstore/utils"
)

// Scheme defines the backend scheme.
const Scheme = "s3"

const defaultUserAgent = "objstore/1.0 (github.com/tidalfs/objstore)"

// Client is a wire-level client for one S3-compatible endpoint and credential set. It is safe for
// concurrent use once constructed: options are copied at construction and operations never mutate shared
// state. Credential rotation means constructing a new Client.
type Client struct {
	opts        Options
	endpoint    utils.Endpoint
	httpClient  *http.Client
	logger      zerolog.Logger
	userAgent   string
	clockOffset atomic.Int64 // signing-clock adjustment in nanoseconds
}

// NewClient validates opts and returns a ready Client. Missing credentials and malformed endpoints fail
// here, before any request could be signed.
func NewClient(opts Options) (*Client, error) {
	endpoint, err := opts.validate()
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

	c := &Client{
		opts:       opts,
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
	}
	c.clockOffset.Store(int64(opts.TimeOffset))
	return c, nil
}

// WithHTTPClient replaces the underlying HTTP client and returns the client (chainable). Useful for tests
// and for callers that manage their own transport.
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

// SyncClock measures the skew between the service clock and the local clock from an unauthenticated
// response's Date header and applies it to subsequent signing. It is strictly opt-in: trusting an
// unauthenticated response to adjust the signing clock widens the replay window, so prefer fixing the host
// clock and leave this for environments where that isn't possible. Returns the measured offset.
func (c *Client) SyncClock(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint.String()+"/", http.NoBody)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	serverTime, err := http.ParseTime(resp.Header.Get("Date"))
	if err != nil {
		return 0, fmt.Errorf("unable to read service clock: %w", err)
	}

	offset := time.Until(serverTime).Round(time.Second)
	c.clockOffset.Store(int64(offset))
	return offset, nil
}

// now returns the signing clock: local time adjusted by the configured or measured offset.
func (c *Client) now() time.Time {
	return time.Now().UTC().Add(time.Duration(c.clockOffset.Load()))
}

// do signs and executes one exchange, classifying the outcome against the operation's accepted status
// codes. On success the caller owns the response body.
func (c *Client) do(ctx context.Context, r *request, accepted ...int) (*response, error) {
	if c == nil {
		return nil, errors.New("non-nil s3.Client pointer is required")
	}

	req, err := r.build(ctx, c.endpoint, c.opts.UseVirtualHost, c.now(),
		c.opts.AccessKeyID, c.opts.SecretAccessKey, c.userAgent)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rawResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().
			Str("method", r.verb).
			Str("host", req.URL.Host).
			Str("path", req.URL.Path).
			Err(err).
			Msg("request failed")
		return nil, &TransportError{Err: err}
	}

	resp, err := classify(rawResp, accepted)
	c.logger.Debug().
		Str("method", r.verb).
		Str("host", req.URL.Host).
		Str("path", req.URL.Path).
		Int("status", rawResp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")
	return resp, err
}

// doXML executes the exchange and decodes the accepted body into v, closing it on every path.
func (c *Client) doXML(ctx context.Context, r *request, v any, accepted ...int) error {
	resp, err := c.do(ctx, r, accepted...)
	if err != nil {
		return err
	}
	return resp.decodeXML(v)
}

// doDiscard executes the exchange and throws away the accepted body, returning status and headers.
func (c *Client) doDiscard(ctx context.Context, r *request, accepted ...int) (int, http.Header, error) {
	resp, err := c.do(ctx, r, accepted...)
	if err != nil {
		return 0, nil, err
	}
	resp.discard()
	return resp.status, resp.headers, nil
}

// ProbeOptions tunes Client.Probe.
type ProbeOptions struct {
	// WriteCheck additionally writes and deletes a small marker object under the probed prefix.
	WriteCheck bool

	// CountLimit caps how many objects the probe counts under the prefix. Zero uses
	// DefaultProbeCountLimit.
	CountLimit int64
}

// DefaultProbeCountLimit caps probe counting when ProbeOptions.CountLimit is zero.
const DefaultProbeCountLimit = 10000

// Probe checks that the endpoint answers and the credentials are usable for bucket, and counts objects
// under prefix (capped). It is the data source for an admin "test connection" surface: stage failures are
// reported in the result, not as an error. The returned error is non-nil only when the probe itself could
// not run (context cancellation).
func (c *Client) Probe(ctx context.Context, bucket, prefix string, opts *ProbeOptions) (*objstore.ProbeResult, error) {
	if opts == nil {
		opts = &ProbeOptions{}
	}
	countLimit := opts.CountLimit
	if countLimit <= 0 {
		countLimit = DefaultProbeCountLimit
	}

	start := time.Now()
	result := &objstore.ProbeResult{Endpoint: c.endpoint.String()}
	defer func() { result.Elapsed = time.Since(start) }()

	// reachability: any HTTP answer counts, authenticated or not
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint.String()+"/", http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	rawResp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Detail = doErr.Error()
		return result, nil
	}
	_ = rawResp.Body.Close()
	result.Reachable = true

	// authentication: a signed single-key listing
	if _, err := c.ListObjects(ctx, bucket, ListOptions{Prefix: prefix, MaxKeys: 1}); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Detail = err.Error()
		return result, nil
	}
	result.Authenticated = true

	if opts.WriteCheck {
		result.WriteChecked = true
		key := utils.JoinKey(prefix, ".objstore-probe-"+strconv.FormatInt(time.Now().UnixNano(), 36))
		if err := c.PutObject(ctx, bucket, key, []byte("probe"), nil); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Detail = err.Error()
		} else if err := c.DeleteObject(ctx, bucket, key); err != nil {
			result.Detail = err.Error()
		} else {
			result.Writable = true
		}
	}

	// count objects under the prefix, one page at a time, up to the cap
	marker := ""
	for {
		page, err := c.ListObjects(ctx, bucket, ListOptions{Prefix: prefix, Marker: marker, MaxKeys: 1000})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Detail = err.Error()
			return result, nil
		}
		result.PendingCount += int64(len(page.Objects))
		if !page.IsTruncated || page.NextMarker == "" {
			break
		}
		if result.PendingCount >= countLimit {
			result.CountCapped = true
			break
		}
		marker = page.NextMarker
	}

	return result, nil
}
