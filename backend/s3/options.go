package s3

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tidalfs/objstore"
	"github.com/tidalfs/objstore/transport"
	"github.com/tidalfs/objstore/utils"
)

// DefaultEndpoint is used when Options.Endpoint is empty.
const DefaultEndpoint = "s3.amazonaws.com"

// Options holds s3-specific client options. Credentials and endpoint are required up front: a Client fails fast
// at construction rather than producing silently invalid signatures later.
type Options struct {
	AccessKeyID     string `json:"accessKeyId,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty" yaml:"secret_access_key,omitempty"`

	// Endpoint is the service host as "host[:port]", optionally prefixed with http:// or https:// to select
	// TLS. A bare host uses TLS unless DisableSSL is set. Empty means AWS S3.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Region is the location constraint sent with CreateBucket. Listing and object calls don't need it.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// DisableSSL selects cleartext HTTP for bare-host endpoints. An explicit scheme on Endpoint wins.
	DisableSSL bool `json:"disableSSL,omitempty" yaml:"disable_ssl,omitempty"`

	// UseVirtualHost addresses buckets as bucket.endpoint instead of endpoint/bucket. Path-style is the
	// default since it works against every compatible service without wildcard DNS.
	UseVirtualHost bool `json:"useVirtualHost,omitempty" yaml:"use_virtual_host,omitempty"`

	// TimeOffset is added to the local clock when signing. Use it (or Client.SyncClock) only when the host
	// clock can't be trusted; synchronized clocks are otherwise a precondition of request signing.
	TimeOffset time.Duration `json:"timeOffset,omitempty" yaml:"time_offset,omitempty"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `json:"userAgent,omitempty" yaml:"user_agent,omitempty"`

	// FileBufferSize is the copy buffer size in bytes for streaming uploads and downloads. Zero uses
	// DefaultFileBufferSize.
	FileBufferSize int `json:"fileBufferSize,omitempty" yaml:"file_buffer_size,omitempty"`

	// Transport carries TLS, proxy, and timeout settings.
	Transport transport.Options `json:"transport,omitempty" yaml:"transport,omitempty"`

	// Logger enables debug logging of request verb, host, path, and status. Credentials are never logged.
	// Nil disables logging entirely.
	Logger *zerolog.Logger `json:"-" yaml:"-"`

	// Metrics, when non-nil, registers request counters and latency histograms and instruments the
	// transport with them.
	Metrics prometheus.Registerer `json:"-" yaml:"-"`
}

// DefaultFileBufferSize is the copy buffer size used when Options.FileBufferSize is zero.
const DefaultFileBufferSize = 262144

// validate fails fast on unusable configuration: missing credentials and malformed endpoints must never
// reach the signer.
func (o Options) validate() (utils.Endpoint, error) {
	if o.AccessKeyID == "" || o.SecretAccessKey == "" {
		return utils.Endpoint{}, objstore.ErrMissingCredentials
	}

	raw := o.Endpoint
	if raw == "" {
		raw = DefaultEndpoint
	}
	return utils.ParseEndpoint(raw, !o.DisableSSL)
}

// getHTTPClient builds the http.Client for these options, instrumented when Metrics is set.
func (o Options) getHTTPClient() (*http.Client, error) {
	client, err := transport.NewClient(o.Transport)
	if err != nil {
		return nil, err
	}
	if o.Metrics != nil {
		client.Transport = transport.NewMetrics(o.Metrics).Instrument(client.Transport)
	}
	return client, nil
}
