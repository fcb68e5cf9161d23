package s3

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/tidalfs/objstore"
	"github.com/tidalfs/objstore/backend"
	"github.com/tidalfs/objstore/transport"
	"github.com/tidalfs/objstore/utils"
)

// Store implements objstore.Store over one bucket and optional key prefix on an S3-compatible service.
type Store struct {
	client *Client
	bucket string
	prefix string
}

// NewStore returns a Store rooted at bucket (and prefix, which may be empty) on the service opts points
// at. Construction fails fast on missing credentials or a malformed endpoint.
func NewStore(bucket, prefix string, opts Options) (*Store, error) {
	if err := utils.ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	client, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &Store{client: client, bucket: bucket, prefix: utils.CleanPrefix(prefix)}, nil
}

// Client returns the underlying wire client for operations beyond the Store surface (ACLs, bucket
// logging, batch deletes, post policies).
func (s *Store) Client() *Client {
	return s.client
}

// Put writes size bytes from body to the object at name.
func (s *Store) Put(ctx context.Context, name string, body io.Reader, size int64) error {
	return utils.WrapPutError(s.client.PutObjectStream(ctx, s.bucket, s.key(name), body, size, nil))
}

// PutFile uploads the local file at localPath to the object at name.
func (s *Store) PutFile(ctx context.Context, name, localPath string) error {
	return utils.WrapPutError(s.client.PutObjectFile(ctx, s.bucket, s.key(name), localPath, nil))
}

// Get streams the object at name to w and returns its metadata.
func (s *Store) Get(ctx context.Context, name string, w io.Writer) (*objstore.ObjectInfo, error) {
	info, err := s.client.GetObject(ctx, s.bucket, s.key(name), w, nil)
	return info, utils.WrapGetError(err)
}

// GetFile downloads the object at name to localPath. On failure no partial file is left behind.
func (s *Store) GetFile(ctx context.Context, name, localPath string) (*objstore.ObjectInfo, error) {
	info, err := s.client.GetObjectFile(ctx, s.bucket, s.key(name), localPath, nil)
	return info, utils.WrapGetError(err)
}

// Delete removes the object at name.
func (s *Store) Delete(ctx context.Context, name string) error {
	return utils.WrapDeleteError(s.client.DeleteObject(ctx, s.bucket, s.key(name)))
}

// Stat returns metadata for the object at name. A missing object is the normal (nil, nil) outcome.
func (s *Store) Stat(ctx context.Context, name string) (*objstore.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.key(name))
	return info, utils.WrapStatError(err)
}

// Exists returns boolean if the object exists on the store. Also returns an error if any.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	found, err := s.client.ObjectExists(ctx, s.bucket, s.key(name))
	return found, utils.WrapExistsError(err)
}

// List returns the objects under the store's prefix whose names begin with prefix, keys relative to the
// store prefix. Truncated server responses are followed transparently.
func (s *Store) List(ctx context.Context, prefix string) ([]objstore.ObjectInfo, error) {
	if err := utils.ValidatePrefix(prefix); err != nil {
		return nil, utils.WrapListError(err)
	}

	res, err := s.client.ListObjects(ctx, s.bucket, ListOptions{Prefix: utils.JoinKey(s.prefix, prefix)})
	if err != nil {
		return nil, utils.WrapListError(err)
	}

	base := utils.EnsureTrailingSlash(s.prefix)
	infos := res.Objects
	for i := range infos {
		infos[i].Key = strings.TrimPrefix(infos[i].Key, base)
	}
	return infos, nil
}

// SignedURL returns a time-limited unauthenticated GET URL for the object at name.
func (s *Store) SignedURL(name string, lifetime time.Duration) (string, error) {
	u, err := s.client.SignedURL(s.bucket, s.key(name), lifetime)
	return u, utils.WrapSignError(err)
}

// Probe checks endpoint reachability and credential validity and counts the objects under the store
// prefix. It never writes; use Client.Probe directly for the write check.
func (s *Store) Probe(ctx context.Context) (*objstore.ProbeResult, error) {
	result, err := s.client.Probe(ctx, s.bucket, utils.EnsureTrailingSlash(s.prefix), nil)
	return result, utils.WrapProbeError(err)
}

// Scheme returns the scheme for this store, eg. "s3".
func (s *Store) Scheme() string {
	return Scheme
}

func (s *Store) String() string {
	out := Scheme + "://" + s.bucket
	if s.prefix != "" {
		out += "/" + s.prefix
	}
	return out
}

/*
	Private helpers
*/

func (s *Store) key(name string) string {
	return utils.JoinKey(s.prefix, name)
}

func init() {
	backend.Register(Scheme, func(bucket, prefix string, opts backend.Options) (objstore.Store, error) {
		accessKeyID, secretAccessKey := backend.ResolveCredentials(opts)
		store, err := NewStore(bucket, prefix, Options{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			Endpoint:        opts.Endpoint,
			Region:          opts.Region,
			Transport: transport.Options{
				InsecureSkipVerify: opts.InsecureSkipVerify,
				ProxyURL:           opts.ProxyURL,
				Timeout:            opts.Timeout,
			},
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	})
}
