package cloudfront

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// xmlNamespace is the schema namespace submitted documents must carry on their root element.
const xmlNamespace = "http://cloudfront.amazonaws.com/doc/2010-11-01/"

// autoListPageSize is the page size used when a listing auto-paginates.
const autoListPageSize = 100

// DistributionConfig is the caller-controlled half of a distribution: where it pulls content from and how
// it serves it. Origin is the storage endpoint DNS name ("bucket.s3.amazonaws.com"); everything else is
// optional.
type DistributionConfig struct {
	Origin               string
	OriginAccessIdentity string

	// CallerReference makes creation idempotent: re-submitting the same reference yields the same
	// distribution instead of a second one. Left empty, CreateDistribution fills in a unique value.
	CallerReference string

	CNAMEs            []string
	Comment           string
	Enabled           bool
	DefaultRootObject string
	Logging           *DistributionLogging
	TrustedSigners    *TrustedSigners
}

// DistributionLogging directs the distribution's access logs to a bucket.
type DistributionLogging struct {
	Bucket string
	Prefix string
}

// TrustedSigners names the accounts whose key pairs may sign policy URLs for the distribution: the owning
// account itself and/or other accounts by number.
type TrustedSigners struct {
	Self           bool
	AccountNumbers []string
}

// Distribution is the provider's view of a deployed distribution. ETag is the concurrency token captured
// from the response; pass it back to UpdateDistribution or DeleteDistribution unchanged.
type Distribution struct {
	ID                            string
	Status                        string
	LastModified                  time.Time
	InProgressInvalidationBatches int
	DomainName                    string
	Config                        DistributionConfig
	ETag                          string
}

// DistributionSummary is one entry of a distribution listing.
type DistributionSummary struct {
	ID                   string
	Status               string
	LastModified         time.Time
	DomainName           string
	Origin               string
	OriginAccessIdentity string
	CNAMEs               []string
	Comment              string
	Enabled              bool
}

// ListDistributionsOptions controls one listing call. MaxItems > 0 requests a single page of at most that
// many entries; zero lists everything, following truncated pages transparently.
type ListDistributionsOptions struct {
	Marker   string
	MaxItems int
}

// DistributionList is the result of ListDistributions.
type DistributionList struct {
	Marker      string
	NextMarker  string
	IsTruncated bool
	Summaries   []DistributionSummary
}

/*
	Wire shapes. The schema requires the exact element order the struct fields are declared in.
*/

type s3OriginXML struct {
	DNSName              string `xml:"DNSName"`
	OriginAccessIdentity string `xml:"OriginAccessIdentity,omitempty"`
}

type distributionLoggingXML struct {
	Bucket string `xml:"Bucket"`
	Prefix string `xml:"Prefix,omitempty"`
}

type trustedSignersXML struct {
	Self           *struct{} `xml:"Self,omitempty"`
	AccountNumbers []string  `xml:"AwsAccountNumber,omitempty"`
}

type distributionConfigXML struct {
	XMLName           xml.Name                `xml:"DistributionConfig"`
	XMLNS             string                  `xml:"xmlns,attr,omitempty"`
	Origin            s3OriginXML             `xml:"S3Origin"`
	CallerReference   string                  `xml:"CallerReference"`
	CNAMEs            []string                `xml:"CNAME,omitempty"`
	Comment           string                  `xml:"Comment"`
	Enabled           bool                    `xml:"Enabled"`
	DefaultRootObject string                  `xml:"DefaultRootObject,omitempty"`
	Logging           *distributionLoggingXML `xml:"Logging,omitempty"`
	TrustedSigners    *trustedSignersXML      `xml:"TrustedSigners,omitempty"`
}

type distributionXML struct {
	XMLName                       xml.Name              `xml:"Distribution"`
	ID                            string                `xml:"Id"`
	Status                        string                `xml:"Status"`
	LastModifiedTime              time.Time             `xml:"LastModifiedTime"`
	InProgressInvalidationBatches int                   `xml:"InProgressInvalidationBatches"`
	DomainName                    string                `xml:"DomainName"`
	Config                        distributionConfigXML `xml:"DistributionConfig"`
}

type distributionSummaryXML struct {
	ID               string      `xml:"Id"`
	Status           string      `xml:"Status"`
	LastModifiedTime time.Time   `xml:"LastModifiedTime"`
	DomainName       string      `xml:"DomainName"`
	Origin           s3OriginXML `xml:"S3Origin"`
	CNAMEs           []string    `xml:"CNAME"`
	Comment          string      `xml:"Comment"`
	Enabled          bool        `xml:"Enabled"`
}

type distributionListXML struct {
	XMLName     xml.Name                 `xml:"DistributionList"`
	Marker      string                   `xml:"Marker"`
	NextMarker  string                   `xml:"NextMarker"`
	MaxItems    int                      `xml:"MaxItems"`
	IsTruncated bool                     `xml:"IsTruncated"`
	Summaries   []distributionSummaryXML `xml:"DistributionSummary"`
}

/*
	Operations
*/

// CreateDistribution creates a distribution from config and returns the provider's view of it, concurrency
// token included. An empty CallerReference is filled with a unique value first.
func (c *Client) CreateDistribution(ctx context.Context, config DistributionConfig) (*Distribution, error) {
	if config.Origin == "" {
		return nil, errors.New("distribution origin is required")
	}
	if config.CallerReference == "" {
		config.CallerReference = strconv.FormatInt(time.Now().UnixNano(), 10)
	}

	body, err := xml.Marshal(configToWire(config))
	if err != nil {
		return nil, err
	}

	var raw distributionXML
	resp, err := c.doXML(ctx, http.MethodPost, "/distribution", nil, "", body, &raw, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return distributionFromWire(raw, resp.etag), nil
}

// GetDistribution returns the distribution with the given id, concurrency token included.
func (c *Client) GetDistribution(ctx context.Context, id string) (*Distribution, error) {
	if id == "" {
		return nil, errors.New("distribution id is required")
	}

	var raw distributionXML
	resp, err := c.doXML(ctx, http.MethodGet, "/distribution/"+id, nil, "", nil, &raw, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return distributionFromWire(raw, resp.etag), nil
}

// GetDistributionConfig returns just the configuration of the distribution with the given id, plus the
// concurrency token an update or delete of it must carry.
func (c *Client) GetDistributionConfig(ctx context.Context, id string) (*DistributionConfig, string, error) {
	if id == "" {
		return nil, "", errors.New("distribution id is required")
	}

	var raw distributionConfigXML
	resp, err := c.doXML(ctx, http.MethodGet, "/distribution/"+id+"/config", nil, "", nil, &raw, http.StatusOK)
	if err != nil {
		return nil, "", err
	}
	config := configFromWire(raw)
	return &config, resp.etag, nil
}

// UpdateDistribution replaces the configuration of the distribution with the given id. etag must be the
// concurrency token from the latest Get; a stale token is an ErrStaleETag, after which the caller
// re-fetches and retries. The returned Distribution carries the new token.
func (c *Client) UpdateDistribution(ctx context.Context, id string, config DistributionConfig, etag string) (*Distribution, error) {
	if id == "" {
		return nil, errors.New("distribution id is required")
	}
	if etag == "" {
		return nil, errors.New("distribution etag is required")
	}
	if config.Origin == "" {
		return nil, errors.New("distribution origin is required")
	}
	if config.CallerReference == "" {
		return nil, errors.New("distribution caller reference is required on update")
	}

	body, err := xml.Marshal(configToWire(config))
	if err != nil {
		return nil, err
	}

	var raw distributionXML
	resp, err := c.doXML(ctx, http.MethodPut, "/distribution/"+id+"/config", nil, etag, body, &raw, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return distributionFromWire(raw, resp.etag), nil
}

// DeleteDistribution removes the distribution with the given id. The distribution must be disabled first
// and etag must be current, else the provider refuses.
func (c *Client) DeleteDistribution(ctx context.Context, id, etag string) error {
	if id == "" {
		return errors.New("distribution id is required")
	}
	if etag == "" {
		return errors.New("distribution etag is required")
	}

	_, err := c.do(ctx, http.MethodDelete, "/distribution/"+id, nil, etag, nil, http.StatusNoContent)
	return err
}

// ListDistributions lists the account's distributions. With MaxItems > 0 it returns a single page and the
// caller resumes from NextMarker; otherwise truncated pages are followed transparently and the full set is
// returned.
func (c *Client) ListDistributions(ctx context.Context, opts ListDistributionsOptions) (*DistributionList, error) {
	if opts.MaxItems > 0 {
		return c.listDistributionsPage(ctx, opts.Marker, opts.MaxItems)
	}

	out := &DistributionList{Marker: opts.Marker}
	marker := opts.Marker
	for {
		page, err := c.listDistributionsPage(ctx, marker, autoListPageSize)
		if err != nil {
			return nil, err
		}
		out.Summaries = append(out.Summaries, page.Summaries...)
		if !page.IsTruncated || page.NextMarker == "" {
			return out, nil
		}
		marker = page.NextMarker
	}
}

/*
	Private helpers
*/

func (c *Client) listDistributionsPage(ctx context.Context, marker string, maxItems int) (*DistributionList, error) {
	query := url.Values{}
	if marker != "" {
		query.Set("Marker", marker)
	}
	query.Set("MaxItems", strconv.Itoa(maxItems))

	var raw distributionListXML
	if _, err := c.doXML(ctx, http.MethodGet, "/distribution", query, "", nil, &raw, http.StatusOK); err != nil {
		return nil, err
	}

	out := &DistributionList{
		Marker:      raw.Marker,
		NextMarker:  raw.NextMarker,
		IsTruncated: raw.IsTruncated,
		Summaries:   make([]DistributionSummary, 0, len(raw.Summaries)),
	}
	for _, s := range raw.Summaries {
		out.Summaries = append(out.Summaries, DistributionSummary{
			ID:                   s.ID,
			Status:               s.Status,
			LastModified:         s.LastModifiedTime,
			DomainName:           s.DomainName,
			Origin:               s.Origin.DNSName,
			OriginAccessIdentity: s.Origin.OriginAccessIdentity,
			CNAMEs:               s.CNAMEs,
			Comment:              s.Comment,
			Enabled:              s.Enabled,
		})
	}
	if out.IsTruncated && out.NextMarker == "" && len(raw.Summaries) > 0 {
		out.NextMarker = raw.Summaries[len(raw.Summaries)-1].ID
	}
	return out, nil
}

func configToWire(config DistributionConfig) distributionConfigXML {
	wire := distributionConfigXML{
		XMLNS: xmlNamespace,
		Origin: s3OriginXML{
			DNSName:              config.Origin,
			OriginAccessIdentity: config.OriginAccessIdentity,
		},
		CallerReference:   config.CallerReference,
		CNAMEs:            config.CNAMEs,
		Comment:           config.Comment,
		Enabled:           config.Enabled,
		DefaultRootObject: config.DefaultRootObject,
	}
	if config.Logging != nil {
		wire.Logging = &distributionLoggingXML{Bucket: config.Logging.Bucket, Prefix: config.Logging.Prefix}
	}
	if ts := config.TrustedSigners; ts != nil && (ts.Self || len(ts.AccountNumbers) > 0) {
		wire.TrustedSigners = &trustedSignersXML{AccountNumbers: ts.AccountNumbers}
		if ts.Self {
			wire.TrustedSigners.Self = &struct{}{}
		}
	}
	return wire
}

func configFromWire(raw distributionConfigXML) DistributionConfig {
	config := DistributionConfig{
		Origin:               raw.Origin.DNSName,
		OriginAccessIdentity: raw.Origin.OriginAccessIdentity,
		CallerReference:      raw.CallerReference,
		CNAMEs:               raw.CNAMEs,
		Comment:              raw.Comment,
		Enabled:              raw.Enabled,
		DefaultRootObject:    raw.DefaultRootObject,
	}
	if raw.Logging != nil {
		config.Logging = &DistributionLogging{Bucket: raw.Logging.Bucket, Prefix: raw.Logging.Prefix}
	}
	if raw.TrustedSigners != nil {
		config.TrustedSigners = &TrustedSigners{
			Self:           raw.TrustedSigners.Self != nil,
			AccountNumbers: raw.TrustedSigners.AccountNumbers,
		}
	}
	return config
}

func distributionFromWire(raw distributionXML, etag string) *Distribution {
	return &Distribution{
		ID:                            raw.ID,
		Status:                        raw.Status,
		LastModified:                  raw.LastModifiedTime,
		InProgressInvalidationBatches: raw.InProgressInvalidationBatches,
		DomainName:                    raw.DomainName,
		Config:                        configFromWire(raw.Config),
		ETag:                          etag,
	}
}
