// Package objstore provides a provider-independent interface for redirecting
// file storage to S3-compatible object storage services such as AWS S3 and
// Google Cloud Storage (interoperability mode).
package objstore

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Store represents a bucket (or bucket prefix) on an object storage service
// with any authentication accounted for. Implementations are safe for
// concurrent use once constructed.
type Store interface {
	fmt.Stringer

	// Put writes size bytes from body to the object at 'name'. The length must be
	// known and non-negative; implementations stream the body in bounded chunks
	// rather than buffering it whole.
	Put(ctx context.Context, name string, body io.Reader, size int64) error

	// PutFile uploads the local file at localPath to the object at 'name'.
	PutFile(ctx context.Context, name, localPath string) error

	// Get streams the object at 'name' to w and returns its metadata. A missing
	// object is an error; use Stat or Exists first if the distinction matters.
	Get(ctx context.Context, name string, w io.Writer) (*ObjectInfo, error)

	// GetFile downloads the object at 'name' to localPath. A destination file is
	// never left partially written; on any failure it is removed.
	GetFile(ctx context.Context, name, localPath string) (*ObjectInfo, error)

	// Delete removes the object at 'name'.
	Delete(ctx context.Context, name string) error

	// Stat returns metadata for the object at 'name'. A missing object is the
	// normal (nil, nil) outcome, not an error; any other failure returns a
	// non-nil error.
	Stat(ctx context.Context, name string) (*ObjectInfo, error)

	// Exists returns boolean if the object exists on the store. Also returns an
	// error if any.
	Exists(ctx context.Context, name string) (bool, error)

	// List returns the objects whose names start with prefix, in the order the
	// service returns them. Truncated server responses are followed
	// transparently, so the result is complete regardless of service page size.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// SignedURL returns a URL granting time-limited unauthenticated GET access
	// to the object at 'name'. The signing secret never appears in the URL.
	SignedURL(name string, lifetime time.Duration) (string, error)

	// Probe checks that the configured credentials and endpoint are usable and
	// reports what it found. It never modifies stored objects unless the
	// implementation's write check was explicitly enabled.
	Probe(ctx context.Context) (*ProbeResult, error)

	// Scheme returns the uri scheme used by the Store: s3, gs, etc...
	Scheme() string
}

// ObjectInfo describes a stored object. Size is in bytes; ETag is the
// service's content hash with surrounding quotes stripped. ContentType and
// Metadata are populated only by calls that read the object's headers.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	StorageClass string
	ContentType  string
	Metadata     map[string]string
}

// ProbeResult reports the outcome of a connectivity and credential check.
type ProbeResult struct {
	// Endpoint is the host the probe was run against.
	Endpoint string

	// Reachable reports whether the endpoint answered at all, authenticated
	// or not.
	Reachable bool

	// Authenticated reports whether a signed listing request succeeded.
	Authenticated bool

	// WriteChecked reports whether a write/delete round trip was attempted,
	// and Writable its outcome.
	WriteChecked bool
	Writable     bool

	// PendingCount is the number of objects found under the configured
	// prefix. When CountCapped is true the store stopped counting at its
	// cap and the real number is at least PendingCount.
	PendingCount int64
	CountCapped  bool

	// Detail carries the first stage failure, suitable for display next to
	// the pass/fail flags. Empty when every attempted stage passed.
	Detail string

	// Elapsed is the total probe duration.
	Elapsed time.Duration
}

// OK reports whether the configuration is usable: the endpoint answered and
// the credentials were accepted (and the write check passed, if attempted).
func (p *ProbeResult) OK() bool {
	if p == nil {
		return false
	}
	if p.WriteChecked && !p.Writable {
		return false
	}
	return p.Reachable && p.Authenticated
}
