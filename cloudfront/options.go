package cloudfront

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/tidalfs/objstore"
	"github.com/tidalfs/objstore/transport"
	"github.com/tidalfs/objstore/utils"
)

// DefaultEndpoint is used when Options.Endpoint is empty.
const DefaultEndpoint = "cloudfront.amazonaws.com"

// Options holds cloudfront-specific client options. Credentials are required; the signing key pair is only
// needed for the policy-signing calls and may be omitted when distributions are managed without them.
type Options struct {
	AccessKeyID     string `json:"accessKeyId,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty" yaml:"secret_access_key,omitempty"`

	// Endpoint is the service host as "host[:port]", optionally prefixed with http:// or https:// to
	// select TLS. Empty means the AWS CloudFront API host.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// KeyPairID names the signing key pair for policy-signed URLs and cookies.
	KeyPairID string `json:"keyPairId,omitempty" yaml:"key_pair_id,omitempty"`

	// PrivateKey is the signing key as PKCS#1 or PKCS#8 PEM, or in OpenSSH format. Exactly one of
	// PrivateKey and PrivateKeyPath may be set.
	PrivateKey []byte `json:"-" yaml:"-"`

	// PrivateKeyPath is a file holding the signing key, with "~" expanded to the home directory.
	PrivateKeyPath string `json:"privateKeyPath,omitempty" yaml:"private_key_path,omitempty"`

	// TimeOffset is added to the local clock when dating requests and computing policy expiries.
	TimeOffset time.Duration `json:"timeOffset,omitempty" yaml:"time_offset,omitempty"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `json:"userAgent,omitempty" yaml:"user_agent,omitempty"`

	// Transport carries TLS, proxy, and timeout settings.
	Transport transport.Options `json:"transport,omitempty" yaml:"transport,omitempty"`

	// Logger enables debug logging of request verb, host, path, and status. Credentials and signing keys
	// are never logged. Nil disables logging entirely.
	Logger *zerolog.Logger `json:"-" yaml:"-"`

	// Metrics, when non-nil, registers request counters and latency histograms and instruments the
	// transport with them.
	Metrics prometheus.Registerer `json:"-" yaml:"-"`
}

// validate fails fast on unusable configuration so no request is ever signed with it.
func (o Options) validate() (utils.Endpoint, error) {
	if o.AccessKeyID == "" || o.SecretAccessKey == "" {
		return utils.Endpoint{}, objstore.ErrMissingCredentials
	}

	raw := o.Endpoint
	if raw == "" {
		raw = DefaultEndpoint
	}
	return utils.ParseEndpoint(raw, true)
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

// loadSigningKey resolves the configured signing key, or (nil, nil) when none is configured. The key pair
// id and the key must arrive together; one without the other is a configuration error.
func (o Options) loadSigningKey() (*rsa.PrivateKey, error) {
	material := o.PrivateKey
	if o.PrivateKeyPath != "" {
		if len(material) > 0 {
			return nil, errors.New("PrivateKey and PrivateKeyPath are mutually exclusive")
		}
		keyPath, err := homedir.Expand(o.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		material, err = os.ReadFile(keyPath) //nolint:gosec // configured key path
		if err != nil {
			return nil, err
		}
	}

	switch {
	case len(material) == 0 && o.KeyPairID == "":
		return nil, nil
	case len(material) == 0:
		return nil, errors.New("KeyPairID is set but no private key is configured")
	case o.KeyPairID == "":
		return nil, errors.New("a private key is configured but KeyPairID is empty")
	}

	return parsePrivateKey(material)
}

// parsePrivateKey accepts PKCS#1 ("RSA PRIVATE KEY") and PKCS#8 ("PRIVATE KEY") PEM blocks directly and
// hands every other shape, OpenSSH format included, to the ssh package.
func parsePrivateKey(material []byte) (*rsa.PrivateKey, error) {
	if block, _ := pem.Decode(material); block != nil {
		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse PKCS#1 private key: %w", err)
			}
			return key, nil
		case "PRIVATE KEY":
			parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse PKCS#8 private key: %w", err)
			}
			key, ok := parsed.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("policy signing requires an RSA key, got %T", parsed)
			}
			return key, nil
		}
	}

	parsed, err := ssh.ParseRawPrivateKey(material)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("policy signing requires an RSA key, got %T", parsed)
	}
	return key, nil
}
