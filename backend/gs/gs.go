package gs

import (
	"strings"

	"github.com/tidalfs/objstore"
	"github.com/tidalfs/objstore/backend"
	"github.com/tidalfs/objstore/backend/s3"
	"github.com/tidalfs/objstore/transport"
)

// Scheme is the registered URI scheme for Cloud Storage stores.
const Scheme = "gs"

// DefaultEndpoint is the Cloud Storage XML interoperability host, used when the options name no endpoint.
const DefaultEndpoint = "storage.googleapis.com"

// NewClient returns an s3.Client pointed at the interoperability endpoint. Use it when the Store surface is
// not enough (ACLs, batch deletes); the credentials are an interoperability HMAC key pair, not a service
// account.
func NewClient(opts s3.Options) (*s3.Client, error) {
	return s3.NewClient(withDefaults(opts))
}

// Store implements objstore.Store over a Cloud Storage bucket. It is the s3 store pointed at the
// interoperability endpoint; only the scheme identity differs.
type Store struct {
	*s3.Store
}

// NewStore returns a Store rooted at bucket (and prefix, which may be empty). An empty opts.Endpoint is
// pointed at DefaultEndpoint.
func NewStore(bucket, prefix string, opts s3.Options) (*Store, error) {
	inner, err := s3.NewStore(bucket, prefix, withDefaults(opts))
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// Scheme returns the scheme for this store, eg. "gs".
func (s *Store) Scheme() string {
	return Scheme
}

func (s *Store) String() string {
	return Scheme + strings.TrimPrefix(s.Store.String(), s3.Scheme)
}

func withDefaults(opts s3.Options) s3.Options {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	return opts
}

func init() {
	backend.Register(Scheme, func(bucket, prefix string, opts backend.Options) (objstore.Store, error) {
		accessKeyID, secretAccessKey := backend.ResolveCredentials(opts)
		store, err := NewStore(bucket, prefix, s3.Options{
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
