package s3

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // Content-MD5 is an integrity header, not a security control
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidalfs/objstore"
	"github.com/tidalfs/objstore/utils"
)

// request describes one pending object-storage API call before it is signed and executed. It is transient
// state owned by a single operation; nothing is shared across calls. Exactly one body source may be
// attached, and bodied requests must carry a known, non-negative length before execution.
type request struct {
	verb    string
	bucket  string
	key     string
	query   url.Values
	headers http.Header

	body    io.Reader
	size    int64
	hasBody bool
}

func newRequest(verb, bucket, key string) *request {
	return &request{
		verb:    verb,
		bucket:  bucket,
		key:     key,
		query:   make(url.Values),
		headers: make(http.Header),
		size:    -1,
	}
}

// setSubresource marks a bucket/object configuration facet (?acl, ?logging, ...). Sub-resources travel in
// the query string and participate in the canonical resource.
func (r *request) setSubresource(name string) *request {
	r.query.Set(name, "")
	return r
}

func (r *request) setQuery(k, v string) *request {
	r.query.Set(k, v)
	return r
}

func (r *request) setHeader(k, v string) *request {
	r.headers.Set(k, v)
	return r
}

// setBodyBytes attaches an in-memory body. The Content-MD5 integrity header is cheap here, so callers that
// want it pass computeMD5.
func (r *request) setBodyBytes(b []byte, computeMD5 bool) *request {
	r.body = bytes.NewReader(b)
	r.size = int64(len(b))
	r.hasBody = true
	if computeMD5 {
		r.headers.Set("Content-MD5", contentMD5(b))
	}
	return r
}

// setBodyReader attaches a streaming body with a declared size. The transport copies it through in bounded
// chunks; no full-payload buffering happens at this layer.
func (r *request) setBodyReader(rd io.Reader, size int64) *request {
	r.body = rd
	r.size = size
	r.hasBody = true
	return r
}

// build assembles and signs the http.Request. The canonical resource is always the path-style form; under
// virtual-host addressing only the request URL changes.
func (r *request) build(ctx context.Context, endpoint utils.Endpoint, virtualHost bool, now time.Time,
	accessKeyID, secretAccessKey, userAgent string) (*http.Request, error) {
	if r.hasBody && r.size < 0 {
		return nil, objstore.ErrUnknownLength
	}

	pathStyle := "/"
	if r.bucket != "" {
		pathStyle = "/" + r.bucket
		if r.key != "" {
			pathStyle += "/" + r.key
		}
	}
	escapedPathStyle := escapePath(pathStyle)

	host := endpoint.HostPortStr()
	requestPath := escapedPathStyle
	if virtualHost && r.bucket != "" {
		host = r.bucket + "." + host
		requestPath = "/"
		if r.key != "" {
			requestPath = escapePath("/" + r.key)
		}
	}

	rawURL := endpoint.Scheme() + "://" + host + requestPath
	if encoded := r.query.Encode(); encoded != "" {
		rawURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, r.verb, rawURL, r.body)
	if err != nil {
		return nil, err
	}
	if r.hasBody {
		req.ContentLength = r.size
	}

	for k, vals := range r.headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Date", now.Format(http.TimeFormat))
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization",
		signV2(r.verb, req.Header, canonicalResource(escapedPathStyle, r.query), accessKeyID, secretAccessKey))

	return req, nil
}

/*
	Private helpers
*/

func contentMD5(b []byte) string {
	sum := md5.Sum(b) //nolint:gosec // integrity header
	return base64.StdEncoding.EncodeToString(sum[:])
}

func escapePath(p string) string {
	u := url.URL{Path: p}
	return u.EscapedPath()
}
