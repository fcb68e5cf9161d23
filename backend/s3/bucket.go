package s3

import (
	"context"
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidalfs/objstore"
	"github.com/tidalfs/objstore/utils"
)

// autoPageSize is the page size requested while a listing auto-paginates.
const autoPageSize = 1000

// usEastClassic is the region whose location constraint is expressed by omission.
const usEastClassic = "us-east-1"

// BucketInfo describes one bucket owned by the account.
type BucketInfo struct {
	Name         string
	CreationDate time.Time
}

// BucketList is the detailed account bucket listing.
type BucketList struct {
	Owner   Owner
	Buckets []BucketInfo
}

// ListOptions tunes ListObjects.
type ListOptions struct {
	// Prefix restricts the listing to keys beginning with it.
	Prefix string

	// Marker sets the key to resume after.
	Marker string

	// Delimiter groups keys sharing the same substring between Prefix and the first occurrence of
	// Delimiter under CommonPrefixes.
	Delimiter string

	// MaxKeys caps one page. Zero means list everything: truncated responses are followed transparently
	// and the returned result covers the whole prefix.
	MaxKeys int

	// WithCommonPrefixes surfaces the grouped prefixes on the result. Ignored without Delimiter.
	WithCommonPrefixes bool
}

// ListResult is the outcome of one ListObjects call. Objects preserve server order within and across
// pages. When IsTruncated is true, NextMarker resumes the listing where this page stopped.
type ListResult struct {
	Bucket         string
	Prefix         string
	Marker         string
	NextMarker     string
	IsTruncated    bool
	Objects        []objstore.ObjectInfo
	CommonPrefixes []string
}

/*
	Wire shapes
*/

type listAllMyBucketsResult struct {
	XMLName xml.Name      `xml:"ListAllMyBucketsResult"`
	Owner   Owner         `xml:"Owner"`
	Buckets []bucketEntry `xml:"Buckets>Bucket"`
}

type bucketEntry struct {
	Name         string    `xml:"Name"`
	CreationDate time.Time `xml:"CreationDate"`
}

type listBucketResult struct {
	XMLName        xml.Name       `xml:"ListBucketResult"`
	Name           string         `xml:"Name"`
	Prefix         string         `xml:"Prefix"`
	Marker         string         `xml:"Marker"`
	NextMarker     string         `xml:"NextMarker"`
	MaxKeys        int            `xml:"MaxKeys"`
	Delimiter      string         `xml:"Delimiter"`
	IsTruncated    bool           `xml:"IsTruncated"`
	Contents       []listEntry    `xml:"Contents"`
	CommonPrefixes []commonPrefix `xml:"CommonPrefixes"`
}

type listEntry struct {
	Key          string    `xml:"Key"`
	LastModified time.Time `xml:"LastModified"`
	ETag         string    `xml:"ETag"`
	Size         int64     `xml:"Size"`
	StorageClass string    `xml:"StorageClass"`
}

type commonPrefix struct {
	Prefix string `xml:"Prefix"`
}

type createBucketConfiguration struct {
	XMLName            xml.Name `xml:"CreateBucketConfiguration"`
	LocationConstraint string   `xml:"LocationConstraint"`
}

type locationConstraint struct {
	XMLName  xml.Name `xml:"LocationConstraint"`
	Location string   `xml:",chardata"`
}

/*
	Operations
*/

// ListBuckets returns the names of the buckets owned by the configured credentials.
func (c *Client) ListBuckets(ctx context.Context) ([]string, error) {
	list, err := c.ListBucketsDetailed(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list.Buckets))
	for _, b := range list.Buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

// ListBucketsDetailed returns the account owner and the owned buckets with creation times.
func (c *Client) ListBucketsDetailed(ctx context.Context) (*BucketList, error) {
	var raw listAllMyBucketsResult
	if err := c.doXML(ctx, newRequest(http.MethodGet, "", ""), &raw, http.StatusOK); err != nil {
		return nil, err
	}

	list := &BucketList{Owner: raw.Owner, Buckets: make([]BucketInfo, 0, len(raw.Buckets))}
	for _, b := range raw.Buckets {
		list.Buckets = append(list.Buckets, BucketInfo{Name: b.Name, CreationDate: b.CreationDate})
	}
	return list, nil
}

// CreateBucketOptions tunes CreateBucket.
type CreateBucketOptions struct {
	// ACL is a canned ACL applied at creation (ACLPrivate and friends).
	ACL string

	// Region overrides the client's configured region for the location constraint. The classic
	// us-east-1 region is expressed by omitting the constraint.
	Region string
}

// CreateBucket creates bucket, optionally applying a canned ACL and a location constraint.
func (c *Client) CreateBucket(ctx context.Context, bucket string, opts *CreateBucketOptions) error {
	if err := utils.ValidateBucketName(bucket); err != nil {
		return err
	}
	if opts == nil {
		opts = &CreateBucketOptions{}
	}

	r := newRequest(http.MethodPut, bucket, "")
	if opts.ACL != "" {
		r.setHeader("x-amz-acl", opts.ACL)
	}

	region := opts.Region
	if region == "" {
		region = c.opts.Region
	}
	if region != "" && region != usEastClassic {
		body, err := xml.Marshal(createBucketConfiguration{LocationConstraint: region})
		if err != nil {
			return err
		}
		r.setBodyBytes(body, false)
		r.setHeader("Content-Type", "application/xml")
	}

	_, _, err := c.doDiscard(ctx, r, http.StatusOK)
	return err
}

// DeleteBucket removes an empty bucket.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	if err := utils.ValidateBucketName(bucket); err != nil {
		return err
	}
	_, _, err := c.doDiscard(ctx, newRequest(http.MethodDelete, bucket, ""), http.StatusNoContent)
	return err
}

// GetBucketLocation returns the bucket's region. An empty location constraint is the classic region.
func (c *Client) GetBucketLocation(ctx context.Context, bucket string) (string, error) {
	if err := utils.ValidateBucketName(bucket); err != nil {
		return "", err
	}

	var raw locationConstraint
	r := newRequest(http.MethodGet, bucket, "").setSubresource("location")
	if err := c.doXML(ctx, r, &raw, http.StatusOK); err != nil {
		return "", err
	}

	if loc := strings.TrimSpace(raw.Location); loc != "" {
		return loc, nil
	}
	return usEastClassic, nil
}

// ListObjects lists keys in bucket per opts. With MaxKeys > 0 it returns a single page; with MaxKeys == 0
// it follows truncated responses until the listing is complete, so the result has every matching key with
// no duplicates and no gaps.
func (c *Client) ListObjects(ctx context.Context, bucket string, opts ListOptions) (*ListResult, error) {
	if err := utils.ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := utils.ValidatePrefix(opts.Prefix); err != nil {
		return nil, err
	}

	if opts.MaxKeys > 0 {
		return c.listPage(ctx, bucket, opts)
	}

	pageOpts := opts
	pageOpts.MaxKeys = autoPageSize
	result := &ListResult{Bucket: bucket, Prefix: opts.Prefix, Marker: opts.Marker}
	for {
		page, err := c.listPage(ctx, bucket, pageOpts)
		if err != nil {
			return nil, err
		}
		result.Objects = append(result.Objects, page.Objects...)
		result.CommonPrefixes = append(result.CommonPrefixes, page.CommonPrefixes...)
		if !page.IsTruncated || page.NextMarker == "" {
			break
		}
		pageOpts.Marker = page.NextMarker
	}
	return result, nil
}

/*
	Private helpers
*/

func (c *Client) listPage(ctx context.Context, bucket string, opts ListOptions) (*ListResult, error) {
	r := newRequest(http.MethodGet, bucket, "")
	if opts.Prefix != "" {
		r.setQuery("prefix", opts.Prefix)
	}
	if opts.Marker != "" {
		r.setQuery("marker", opts.Marker)
	}
	if opts.Delimiter != "" {
		r.setQuery("delimiter", opts.Delimiter)
	}
	r.setQuery("max-keys", strconv.Itoa(opts.MaxKeys))

	var raw listBucketResult
	if err := c.doXML(ctx, r, &raw, http.StatusOK); err != nil {
		return nil, err
	}

	page := &ListResult{
		Bucket:      bucket,
		Prefix:      raw.Prefix,
		Marker:      raw.Marker,
		NextMarker:  raw.NextMarker,
		IsTruncated: raw.IsTruncated,
		Objects:     make([]objstore.ObjectInfo, 0, len(raw.Contents)),
	}
	for _, e := range raw.Contents {
		page.Objects = append(page.Objects, objstore.ObjectInfo{
			Key:          e.Key,
			Size:         e.Size,
			ETag:         strings.Trim(e.ETag, `"`),
			LastModified: e.LastModified,
			StorageClass: e.StorageClass,
		})
	}
	if opts.WithCommonPrefixes && opts.Delimiter != "" {
		for _, p := range raw.CommonPrefixes {
			page.CommonPrefixes = append(page.CommonPrefixes, p.Prefix)
		}
	}

	// Some providers omit NextMarker unless a delimiter was requested; resume after the lexically last
	// element of this page in that case.
	if page.IsTruncated && page.NextMarker == "" {
		if n := len(raw.Contents); n > 0 {
			page.NextMarker = raw.Contents[n-1].Key
		}
		if n := len(raw.CommonPrefixes); n > 0 && raw.CommonPrefixes[n-1].Prefix > page.NextMarker {
			page.NextMarker = raw.CommonPrefixes[n-1].Prefix
		}
	}
	return page, nil
}
