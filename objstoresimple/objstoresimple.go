package objstoresimple

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidalfs/objstore"
	"github.com/tidalfs/objstore/backend"
	_ "github.com/tidalfs/objstore/backend/all" // register all backends
)

var (
	ErrBlankURI         = errors.New("uri is blank")
	ErrMissingScheme    = errors.New("unable to determine uri scheme")
	ErrMissingBucket    = errors.New("unable to determine uri bucket (scheme://bucket[/prefix])")
	ErrInvalidAuthority = errors.New("uri authority must be a bare bucket name")
	ErrBackendNotFound  = errors.New("no matching registered backend found")
)

// NewStore is a convenience function that instantiates a store from a uri string, eg.
// "s3://bucket/prefix". Credentials come from the conventional environment variables; for explicit
// configuration use NewStoreWithOptions.
func NewStore(uri string) (objstore.Store, error) {
	return NewStoreWithOptions(uri, backend.Options{})
}

// NewStoreWithOptions instantiates a store from a uri string with explicit backend options. Any registered
// backend scheme is supported.
func NewStoreWithOptions(uri string, opts backend.Options) (objstore.Store, error) {
	scheme, bucket, prefix, err := parseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("unable to create store for uri %q: %w", uri, err)
	}

	constructor := backend.Backend(scheme)
	if constructor == nil {
		return nil, fmt.Errorf("unable to create store for uri %q: %w", uri, ErrBackendNotFound)
	}
	return constructor(bucket, prefix, opts)
}

// parseURI splits a store uri into its scheme, bucket, and key prefix, validating that each required part
// is present.
func parseURI(uri string) (scheme, bucket, prefix string, err error) {
	if uri == "" {
		return "", "", "", ErrBlankURI
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", fmt.Errorf("unknown url.Parse error: %w", err)
	}

	if u.Scheme == "" {
		return "", "", "", ErrMissingScheme
	}
	if u.User.String() != "" {
		return "", "", "", ErrInvalidAuthority
	}
	if u.Host == "" {
		return "", "", "", ErrMissingBucket
	}

	return u.Scheme, u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
