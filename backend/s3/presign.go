package s3

import (
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// SignedURL returns a URL granting time-limited unauthenticated GET access to bucket/key. The URL embeds
// the access key id, an absolute expiry, and the request signature; the signing secret never appears in
// it. Expiry is computed against the signing clock, so a configured or measured TimeOffset applies.
func (c *Client) SignedURL(bucket, key string, lifetime time.Duration) (string, error) {
	if err := validateBucketKey(bucket, key); err != nil {
		return "", err
	}

	expires := strconv.FormatInt(c.now().Add(lifetime).Unix(), 10)
	escapedPathStyle := escapePath("/" + bucket + "/" + key)
	signature := signV2Query(http.MethodGet, expires, canonicalResource(escapedPathStyle, nil),
		c.opts.SecretAccessKey)

	host := c.endpoint.HostPortStr()
	requestPath := escapedPathStyle
	if c.opts.UseVirtualHost {
		host = bucket + "." + host
		requestPath = escapePath("/" + key)
	}

	query := url.Values{}
	query.Set("AWSAccessKeyId", c.opts.AccessKeyID)
	query.Set("Expires", expires)
	query.Set("Signature", signature)
	return c.endpoint.Scheme() + "://" + host + requestPath + "?" + query.Encode(), nil
}
